package handler

import "claimverifier/internal/claims/models"

// SubmitClaimRequest carries the eight claim form fields verbatim. All parsing happens in
// the validator so form and API submissions fail the same way.
type SubmitClaimRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	PolicyNumber   string `json:"policy_number"`
	PolicyType     string `json:"policy_type"`
	PolicyExpiry   string `json:"policy_expiry"`
	CoverageAmount string `json:"coverage_amount"`
	ClaimAmount    string `json:"claim_amount"`
	ClaimReason    string `json:"claim_reason"`
}

func (r SubmitClaimRequest) toRaw() models.RawSubmission {
	return models.RawSubmission{
		Name:         r.Name,
		Email:        r.Email,
		PolicyNumber: r.PolicyNumber,
		PolicyType:   r.PolicyType,
		Expiry:       r.PolicyExpiry,
		Coverage:     r.CoverageAmount,
		ClaimAmount:  r.ClaimAmount,
		Reason:       r.ClaimReason,
	}
}
