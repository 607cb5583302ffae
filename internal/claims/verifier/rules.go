package verifier

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
)

// Decide classifies a claim. It reads nothing but its arguments: the policy snapshot taken in
// the submission transaction, the claim amount, the reservation already applied to the
// ledger, and the decision instant. Rules are evaluated in order and the first match wins.
func Decide(policy *models.Policy, amount decimal.Decimal, reservation models.Reservation, now time.Time, loc *time.Location) models.DecisionResult {
	switch {
	case !amount.IsPositive():
		return models.DecisionResult{
			Decision: models.DecisionRejected,
			Reason:   models.ReasonNonPositiveAmount,
			Message:  "Claim rejected: claim amount must be greater than zero.",
		}
	case policy.ExpiredOn(models.DayIn(now, loc)):
		return models.DecisionResult{
			Decision: models.DecisionRejected,
			Reason:   models.ReasonPolicyExpired,
			Message:  fmt.Sprintf("Claim rejected: policy %s expired on %s.", policy.PolicyNumber, policy.Expiry.Format("2006-01-02")),
		}
	case reservation.Exceeded:
		return models.DecisionResult{
			Decision: models.DecisionFlagged,
			Reason:   models.ReasonLimitExceeded,
			Message: fmt.Sprintf("Claim flagged for review: amount %s exceeds the available limit of %s.",
				amount.StringFixed(2), reservation.Previous.StringFixed(2)),
		}
	default:
		return models.DecisionResult{
			Decision: models.DecisionApproved,
			Reason:   models.ReasonWithinLimit,
			Message:  fmt.Sprintf("Claim approved. Remaining available limit: %s.", reservation.NewLimit.StringFixed(2)),
		}
	}
}
