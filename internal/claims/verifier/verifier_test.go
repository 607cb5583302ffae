package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
	"claimverifier/pkg/requestcontext"
)

type VerifierSuite struct {
	suite.Suite
	policy *models.Policy
	now    time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.now = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	s.policy = &models.Policy{
		ID:             id.PolicyID(uuid.New()),
		PolicyNumber:   "POL-1",
		Expiry:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		CoverageAmount: decimal.NewFromInt(50000),
		AvailableLimit: decimal.NewFromInt(50000),
	}
}

func (s *VerifierSuite) reserve(amount, previous int64) models.Reservation {
	return models.NewReservation(s.policy.ID, decimal.NewFromInt(amount), decimal.NewFromInt(previous))
}

func (s *VerifierSuite) TestDecide() {
	s.Run("within limit is approved", func() {
		r := Decide(s.policy, decimal.NewFromInt(12000), s.reserve(12000, 50000), s.now, time.UTC)
		s.Equal(models.DecisionApproved, r.Decision)
		s.Equal(models.ReasonWithinLimit, r.Reason)
		s.Contains(r.Message, "38000.00")
	})

	s.Run("exact remaining limit is approved", func() {
		r := Decide(s.policy, decimal.NewFromInt(3000), s.reserve(3000, 3000), s.now, time.UTC)
		s.Equal(models.DecisionApproved, r.Decision)
	})

	s.Run("over limit is flagged", func() {
		r := Decide(s.policy, decimal.NewFromInt(8000), s.reserve(8000, 5000), s.now, time.UTC)
		s.Equal(models.DecisionFlagged, r.Decision)
		s.Equal(models.ReasonLimitExceeded, r.Reason)
	})

	s.Run("zero amount is rejected", func() {
		r := Decide(s.policy, decimal.Zero, s.reserve(0, 50000), s.now, time.UTC)
		s.Equal(models.DecisionRejected, r.Decision)
		s.Equal(models.ReasonNonPositiveAmount, r.Reason)
	})

	s.Run("non-positive amount wins over exceeded", func() {
		r := Decide(s.policy, decimal.Zero, models.Reservation{Exceeded: true}, s.now, time.UTC)
		s.Equal(models.ReasonNonPositiveAmount, r.Reason)
	})

	s.Run("expired policy is rejected", func() {
		expired := *s.policy
		expired.Expiry = time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
		r := Decide(&expired, decimal.NewFromInt(100), s.reserve(100, 50000), s.now, time.UTC)
		s.Equal(models.DecisionRejected, r.Decision)
		s.Equal(models.ReasonPolicyExpired, r.Reason)
	})

	s.Run("policy expiring today is still valid", func() {
		today := *s.policy
		today.Expiry = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
		r := Decide(&today, decimal.NewFromInt(100), s.reserve(100, 50000), s.now, time.UTC)
		s.Equal(models.DecisionApproved, r.Decision)
	})

	s.Run("expiry uses the business time zone", func() {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		s.Require().NoError(err)
		today := *s.policy
		today.Expiry = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
		// 15:00 UTC is already the 15th in Tokyo
		r := Decide(&today, decimal.NewFromInt(100), s.reserve(100, 50000), s.now, tokyo)
		s.Equal(models.DecisionRejected, r.Decision)
	})
}

func (s *VerifierSuite) TestDeterministic() {
	r := s.reserve(8000, 5000)
	first := Decide(s.policy, decimal.NewFromInt(8000), r, s.now, time.UTC)
	for i := 0; i < 10; i++ {
		s.Equal(first, Decide(s.policy, decimal.NewFromInt(8000), r, s.now, time.UTC))
	}
}

func TestVerifierUsesRequestTime(t *testing.T) {
	v := New(WithLocation(nil))
	policy := &models.Policy{Expiry: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

	r := v.Decide(ctx, policy, decimal.NewFromInt(1), models.Reservation{})
	assert.Equal(t, models.DecisionRejected, r.Decision)
	assert.Equal(t, models.ReasonPolicyExpired, r.Reason)
}
