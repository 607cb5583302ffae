package models

import (
	"fmt"
)

// Decision classifies a verified claim.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
	DecisionFlagged  Decision = "Flagged"
)

// ParseDecision validates a persisted decision string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApproved, DecisionRejected, DecisionFlagged:
		return d, nil
	default:
		return "", fmt.Errorf("unknown decision: %q", s)
	}
}

func (d Decision) String() string { return string(d) }

// DecisionReason explains which rule produced the decision.
type DecisionReason string

const (
	ReasonNonPositiveAmount DecisionReason = "non_positive_amount"
	ReasonPolicyExpired     DecisionReason = "policy_expired"
	ReasonLimitExceeded     DecisionReason = "limit_exceeded"
	ReasonWithinLimit       DecisionReason = "within_limit"
)

// DecisionResult is the verifier output: the decision, the rule that fired, and the short
// message shown to the policyholder.
type DecisionResult struct {
	Decision Decision
	Reason   DecisionReason
	Message  string
}
