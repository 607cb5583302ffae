package recorder

import (
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
)

// EventClaimRecorded is the outbox event type written with every committed claim.
const EventClaimRecorded = "claim_recorded"

// Receipt is returned to the submitter once the claim is committed.
type Receipt struct {
	ClaimID       id.ClaimID
	PolicyID      id.PolicyID
	PolicyNumber  string
	PolicyCreated bool
	Decision      models.Decision
	Reason        models.DecisionReason
	Message       string
	PreviousLimit decimal.Decimal
	NewLimit      decimal.Decimal
	Warnings      []string
	SinkFailures  []SinkFailure
}

// SinkFailure is a downstream export that failed after commit.
type SinkFailure struct {
	Sink  string
	Error string
}

type claimRecordedPayload struct {
	ClaimID      string          `json:"claim_id"`
	PolicyID     string          `json:"policy_id"`
	PolicyNumber string          `json:"policy_number"`
	Email        string          `json:"email"`
	ClaimDate    string          `json:"claim_date"`
	ClaimAmount  decimal.Decimal `json:"claim_amount"`
	Decision     models.Decision `json:"decision"`
	Reason       string          `json:"reason"`
	NewLimit     decimal.Decimal `json:"available_claim_limit"`
	RecordedAt   time.Time       `json:"recorded_at"`
}
