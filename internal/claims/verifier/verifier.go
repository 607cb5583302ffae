// Package verifier decides Approved, Rejected or Flagged for a claim whose amount has already
// been reserved against the policy ledger.
package verifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	"claimverifier/pkg/requestcontext"
)

// Verifier applies Decide in a fixed business time zone, taking "now" from the request.
type Verifier struct {
	loc *time.Location
}

type Option func(*Verifier)

// WithLocation sets the time zone whose calendar day decides policy expiry.
func WithLocation(loc *time.Location) Option {
	return func(v *Verifier) {
		if loc != nil {
			v.loc = loc
		}
	}
}

func New(opts ...Option) *Verifier {
	v := &Verifier{loc: time.UTC}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Decide(ctx context.Context, policy *models.Policy, amount decimal.Decimal, reservation models.Reservation) models.DecisionResult {
	return Decide(policy, amount, reservation, requestcontext.Now(ctx), v.loc)
}
