package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "claimverifier/pkg/domain"
	dErrors "claimverifier/pkg/domain-errors"
)

func TestNewPolicy(t *testing.T) {
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)
	draft := PolicyDraft{
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		PolicyNumber:   "POL-1",
		PolicyType:     "health",
		Expiry:         time.Date(2027, 1, 1, 13, 0, 0, 0, time.UTC),
		CoverageAmount: decimal.RequireFromString("50000.00"),
	}

	t.Run("available limit starts at coverage", func(t *testing.T) {
		p, err := NewPolicy(id.PolicyID(uuid.New()), draft, now)
		require.NoError(t, err)
		assert.True(t, p.AvailableLimit.Equal(p.CoverageAmount))
		assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), p.Expiry)
	})

	t.Run("nil ID violates invariant", func(t *testing.T) {
		_, err := NewPolicy(id.PolicyID{}, draft, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("negative coverage violates invariant", func(t *testing.T) {
		bad := draft
		bad.CoverageAmount = decimal.NewFromInt(-1)
		_, err := NewPolicy(id.PolicyID(uuid.New()), bad, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestPolicyExpiredOn(t *testing.T) {
	p := &Policy{Expiry: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)}

	assert.False(t, p.ExpiredOn(time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)), "expiry day is still valid")
	assert.True(t, p.ExpiredOn(time.Date(2026, 10, 15, 0, 0, 1, 0, time.UTC)))
	assert.False(t, p.ExpiredOn(time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)))
}

func TestNewReservation(t *testing.T) {
	pid := id.PolicyID(uuid.New())

	t.Run("within limit", func(t *testing.T) {
		r := NewReservation(pid, decimal.NewFromInt(10000), decimal.NewFromInt(50000))
		assert.True(t, r.NewLimit.Equal(decimal.NewFromInt(40000)))
		assert.False(t, r.Exceeded)
	})

	t.Run("exact limit is not exceeded", func(t *testing.T) {
		r := NewReservation(pid, decimal.NewFromInt(150), decimal.NewFromInt(150))
		assert.True(t, r.NewLimit.IsZero())
		assert.False(t, r.Exceeded)
	})

	t.Run("over limit goes negative and flags", func(t *testing.T) {
		r := NewReservation(pid, decimal.NewFromInt(8000), decimal.NewFromInt(5000))
		assert.True(t, r.NewLimit.Equal(decimal.NewFromInt(-3000)))
		assert.True(t, r.Exceeded)
	})
}

func TestParseDecision(t *testing.T) {
	for _, d := range []Decision{DecisionApproved, DecisionRejected, DecisionFlagged} {
		got, err := ParseDecision(string(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDecision("approved")
	assert.Error(t, err)
}

func TestLedgerBalanceConsistent(t *testing.T) {
	b := LedgerBalance{
		CoverageAmount: decimal.RequireFromString("5000.00"),
		AvailableLimit: decimal.RequireFromString("-3000.00"),
		ClaimedTotal:   decimal.RequireFromString("8000"),
	}
	assert.True(t, b.Consistent())

	b.AvailableLimit = decimal.NewFromInt(0)
	assert.False(t, b.Consistent())
}
