package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "claimverifier/pkg/domain"
	dErrors "claimverifier/pkg/domain-errors"
)

// Policy is an insured party's coverage record (the customers table).
// CoverageAmount is fixed at creation; AvailableLimit only moves through a ledger reservation.
type Policy struct {
	ID             id.PolicyID
	Name           string
	Email          string
	PolicyNumber   string
	PolicyType     string
	Expiry         time.Time
	CoverageAmount decimal.Decimal
	AvailableLimit decimal.Decimal
	CreatedAt      time.Time
}

// PolicyDraft carries the fields needed to create a policy. The store assigns the ID.
type PolicyDraft struct {
	Name           string
	Email          string
	PolicyNumber   string
	PolicyType     string
	Expiry         time.Time
	CoverageAmount decimal.Decimal
}

// Validate checks draft invariants. Violations are programming errors upstream of the
// validator, so they carry CodeInvariantViolation.
func (d PolicyDraft) Validate() error {
	if strings.TrimSpace(d.PolicyNumber) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy number is required")
	}
	if d.Expiry.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy expiry is required")
	}
	if d.CoverageAmount.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "coverage amount must not be negative")
	}
	return nil
}

// NewPolicy materializes a draft with AvailableLimit initialized to CoverageAmount.
func NewPolicy(policyID id.PolicyID, d PolicyDraft, now time.Time) (*Policy, error) {
	if policyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy ID is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Policy{
		ID:             policyID,
		Name:           d.Name,
		Email:          d.Email,
		PolicyNumber:   d.PolicyNumber,
		PolicyType:     d.PolicyType,
		Expiry:         DateOf(d.Expiry),
		CoverageAmount: d.CoverageAmount,
		AvailableLimit: d.CoverageAmount,
		CreatedAt:      now,
	}, nil
}

// ExpiredOn reports whether the policy expiry is strictly before the given calendar day.
// A policy expiring today is still valid.
func (p *Policy) ExpiredOn(day time.Time) bool {
	return p.Expiry.Before(DateOf(day))
}

// DateOf truncates t to its calendar day, expressed as midnight UTC. Callers convert to the
// business time zone before truncating.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayIn is DateOf after converting t to loc. A nil loc means UTC.
func DayIn(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return DateOf(t)
}
