package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
)

// Store is the persistence port for policies and their available limit.
// Implementations return sentinel.ErrNotFound for unknown policies and honour a transaction
// carried in ctx.
type Store interface {
	CreatePolicy(ctx context.Context, draft models.PolicyDraft, now time.Time) (*models.Policy, error)
	// FindOrCreatePolicy returns the policy with draft.PolicyNumber, inserting it first when
	// absent. created reports whether this call inserted the row.
	FindOrCreatePolicy(ctx context.Context, draft models.PolicyDraft, now time.Time) (policy *models.Policy, created bool, err error)
	FindPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	// DecrementLimit subtracts amount from the available limit in one atomic statement and
	// returns the limit before and after the write.
	DecrementLimit(ctx context.Context, policyID id.PolicyID, amount decimal.Decimal) (previous, current decimal.Decimal, err error)
	AvailableLimit(ctx context.Context, policyID id.PolicyID) (decimal.Decimal, error)
}
