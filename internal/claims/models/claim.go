package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "claimverifier/pkg/domain"
)

// Claim is a single monetary request filed against a policy. Claims are append-only and the
// decision is assigned once at creation.
type Claim struct {
	ID        id.ClaimID
	PolicyID  id.PolicyID
	Date      time.Time
	Amount    decimal.Decimal
	Reason    string
	Decision  Decision
	CreatedAt time.Time
}

// Reservation is the outcome of one atomic decrement of a policy's available limit.
type Reservation struct {
	PolicyID id.PolicyID
	Amount   decimal.Decimal
	// Previous is the available limit read inside the same atomic unit as the write.
	Previous decimal.Decimal
	NewLimit decimal.Decimal
	// Exceeded is true when Amount was greater than Previous. The deduction still happened.
	Exceeded bool
}

// NewReservation computes the reservation for amount against previous.
func NewReservation(policyID id.PolicyID, amount, previous decimal.Decimal) Reservation {
	return Reservation{
		PolicyID: policyID,
		Amount:   amount,
		Previous: previous,
		NewLimit: previous.Sub(amount),
		Exceeded: amount.GreaterThan(previous),
	}
}

// LookupRow is one claim returned by the look-up-by-email action.
type LookupRow struct {
	Name           string
	PolicyNumber   string
	ClaimDate      time.Time
	ClaimAmount    decimal.Decimal
	ClaimReason    string
	Decision       Decision
	AvailableLimit decimal.Decimal
}

// LedgerBalance is a single-snapshot read of a policy's limit against its claim rows.
type LedgerBalance struct {
	PolicyID       id.PolicyID
	CoverageAmount decimal.Decimal
	AvailableLimit decimal.Decimal
	ClaimedTotal   decimal.Decimal
}

// Consistent reports whether available = coverage - sum(claims).
func (b LedgerBalance) Consistent() bool {
	return b.AvailableLimit.Equal(b.CoverageAmount.Sub(b.ClaimedTotal))
}
