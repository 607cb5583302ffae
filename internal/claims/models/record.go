package models

// ClaimRecord is everything the external sinks receive for one committed claim.
type ClaimRecord struct {
	Policy Policy
	Claim  Claim
	Result DecisionResult
}
