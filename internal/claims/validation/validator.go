// Package validation gates raw claim submissions before anything touches the ledger.
//
// Rules run in a fixed order and stop at the first failure so the policyholder always sees
// the same message for the same input:
//
//  1. every field present
//  2. email has '@' and '.'
//  3. expiry is a YYYY-MM-DD date
//  4. expiry is not before today
//  5. coverage and claim amount are non-negative decimals
package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	"claimverifier/pkg/email"
)

const dateLayout = "2006-01-02"

// maxAmount is the largest value a NUMERIC(14,2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// Field names reported with KindMissingField and KindMalformedAmount, in form order.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPolicyNumber = "policy_number"
	FieldPolicyType   = "policy_type"
	FieldExpiry       = "policy_expiry"
	FieldCoverage     = "coverage_amount"
	FieldClaimAmount  = "claim_amount"
	FieldReason       = "claim_reason"
)

// Validator turns a RawSubmission into a ValidatedSubmission.
type Validator struct {
	loc *time.Location
}

// Option configures a Validator.
type Option func(*Validator)

// WithLocation sets the time zone that defines "today" for the expiry check.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// New constructs a Validator. The default location is UTC.
func New(opts ...Option) *Validator {
	v := &Validator{loc: time.UTC}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate applies the rules in order. It has no side effects; now only feeds the expiry rule.
// Every field is trimmed before the presence check, so whitespace-only input is a
// MissingField rather than a value.
func (v *Validator) Validate(raw models.RawSubmission, now time.Time) (models.ValidatedSubmission, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{FieldName, &raw.Name},
		{FieldEmail, &raw.Email},
		{FieldPolicyNumber, &raw.PolicyNumber},
		{FieldPolicyType, &raw.PolicyType},
		{FieldExpiry, &raw.Expiry},
		{FieldCoverage, &raw.Coverage},
		{FieldClaimAmount, &raw.ClaimAmount},
		{FieldReason, &raw.Reason},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return models.ValidatedSubmission{}, newError(KindMissingField, f.name, f.name+" is required")
		}
	}

	if !email.HasAddressShape(raw.Email) {
		return models.ValidatedSubmission{}, newError(KindMalformedEmail, FieldEmail, "email must contain '@' and '.'")
	}

	expiry, err := time.Parse(dateLayout, raw.Expiry)
	if err != nil {
		return models.ValidatedSubmission{}, newError(KindMalformedDate, FieldExpiry, "policy_expiry must be a date in YYYY-MM-DD format")
	}
	if expiry.Before(models.DayIn(now, v.loc)) {
		return models.ValidatedSubmission{}, newError(KindPolicyExpired, FieldExpiry, "the policy has expired; claim cannot be submitted")
	}

	coverage, err := parseAmount(FieldCoverage, raw.Coverage)
	if err != nil {
		return models.ValidatedSubmission{}, err
	}
	claimAmount, err := parseAmount(FieldClaimAmount, raw.ClaimAmount)
	if err != nil {
		return models.ValidatedSubmission{}, err
	}

	out := models.ValidatedSubmission{
		Name:         raw.Name,
		Email:        email.Normalize(raw.Email),
		PolicyNumber: raw.PolicyNumber,
		PolicyType:   raw.PolicyType,
		Expiry:       expiry,
		Coverage:     coverage,
		ClaimAmount:  claimAmount,
		Reason:       raw.Reason,
	}
	if claimAmount.GreaterThan(coverage) {
		out.Warnings = append(out.Warnings, models.WarningClaimExceedsCoverage)
	}
	return out, nil
}

// parseAmount accepts plain non-negative decimals with at most two significant fractional
// digits. Exponent notation is refused even though decimal.NewFromString would take it.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, newError(KindMalformedAmount, field, field+" must be a decimal number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, newError(KindMalformedAmount, field, field+" must be a decimal number")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, newError(KindMalformedAmount, field, field+" must not be negative")
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Decimal{}, newError(KindMalformedAmount, field, field+" must have at most two decimal places")
	}
	if d.GreaterThan(maxAmount) {
		return decimal.Decimal{}, newError(KindMalformedAmount, field, field+" is too large")
	}
	return d.Round(2), nil
}

// ValidateEmail applies the presence and email rules to a lone address, as used by the
// look-up-by-email action, and returns it normalized.
func ValidateEmail(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", newError(KindMissingField, FieldEmail, FieldEmail+" is required")
	}
	if !email.HasAddressShape(address) {
		return "", newError(KindMalformedEmail, FieldEmail, "email must contain '@' and '.'")
	}
	return email.Normalize(address), nil
}
