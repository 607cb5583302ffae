package recorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	"claimverifier/internal/platform/outbox"
	id "claimverifier/pkg/domain"
)

// SubmissionValidator gates raw form input.
type SubmissionValidator interface {
	Validate(raw models.RawSubmission, now time.Time) (models.ValidatedSubmission, error)
}

// PolicyLedger resolves policies and reserves claim amounts against their limit.
type PolicyLedger interface {
	FindOrCreatePolicy(ctx context.Context, draft models.PolicyDraft) (*models.Policy, bool, error)
	Reserve(ctx context.Context, policyID id.PolicyID, amount decimal.Decimal) (models.Reservation, error)
}

// ClaimVerifier classifies a reserved claim.
type ClaimVerifier interface {
	Decide(ctx context.Context, policy *models.Policy, amount decimal.Decimal, reservation models.Reservation) models.DecisionResult
}

// ClaimStore persists claim rows and answers ledger-consistency and lookup queries.
type ClaimStore interface {
	InsertClaim(ctx context.Context, claim models.Claim) (*models.Claim, error)
	Balance(ctx context.Context, policyID id.PolicyID) (models.LedgerBalance, error)
	ListByEmail(ctx context.Context, email string) ([]models.LookupRow, error)
}

// UnitOfWork runs fn atomically. Work sharing a lock key is serialized.
type UnitOfWork interface {
	RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error
}

type OutboxWriter interface {
	Append(ctx context.Context, event outbox.Event) error
}

// Sink receives every committed claim. Failures never undo the commit.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.ClaimRecord) error
}

type Lookup interface {
	ListByEmail(ctx context.Context, email string) ([]models.LookupRow, error)
}

// LookupInvalidator drops cached lookup results for an email.
type LookupInvalidator interface {
	Invalidate(ctx context.Context, email string) error
}
