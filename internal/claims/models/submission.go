package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawSubmission is the eight free-text fields of the claim form, as typed.
type RawSubmission struct {
	Name         string
	Email        string
	PolicyNumber string
	PolicyType   string
	Expiry       string
	Coverage     string
	ClaimAmount  string
	Reason       string
}

// Warning codes attached to a submission that passed validation.
const (
	WarningClaimExceedsCoverage = "claim_exceeds_coverage"
	WarningPolicyDetailsDiffer  = "policy_details_differ"
)

// ValidatedSubmission carries parsed, typed fields. Nothing downstream sees raw strings.
type ValidatedSubmission struct {
	Name         string
	Email        string
	PolicyNumber string
	PolicyType   string
	Expiry       time.Time
	Coverage     decimal.Decimal
	ClaimAmount  decimal.Decimal
	Reason       string
	Warnings     []string
}

// PolicyDraft returns the policy fields of the submission.
func (s ValidatedSubmission) PolicyDraft() PolicyDraft {
	return PolicyDraft{
		Name:           s.Name,
		Email:          s.Email,
		PolicyNumber:   s.PolicyNumber,
		PolicyType:     s.PolicyType,
		Expiry:         s.Expiry,
		CoverageAmount: s.Coverage,
	}
}
