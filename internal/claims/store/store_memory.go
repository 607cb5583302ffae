package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
	"claimverifier/pkg/platform/sentinel"
)

// InMemoryStore keeps policies and claims in process memory. Every method holds the store
// lock for its whole body, so DecrementLimit is atomic on its own; multi-call units of work
// are serialized by ShardedTx.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[id.PolicyID]*models.Policy
	byNumber map[string]id.PolicyID
	claims   map[id.PolicyID][]*models.Claim
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[id.PolicyID]*models.Policy),
		byNumber: make(map[string]id.PolicyID),
		claims:   make(map[id.PolicyID][]*models.Claim),
	}
}

func (s *InMemoryStore) CreatePolicy(_ context.Context, draft models.PolicyDraft, now time.Time) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[draft.PolicyNumber]; exists {
		return nil, sentinel.ErrConflict
	}
	return s.insertLocked(draft, now)
}

func (s *InMemoryStore) FindOrCreatePolicy(_ context.Context, draft models.PolicyDraft, now time.Time) (*models.Policy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if policyID, exists := s.byNumber[draft.PolicyNumber]; exists {
		return clonePolicy(s.policies[policyID]), false, nil
	}
	policy, err := s.insertLocked(draft, now)
	if err != nil {
		return nil, false, err
	}
	return policy, true, nil
}

func (s *InMemoryStore) insertLocked(draft models.PolicyDraft, now time.Time) (*models.Policy, error) {
	policy, err := models.NewPolicy(id.PolicyID(uuid.New()), draft, now)
	if err != nil {
		return nil, err
	}
	s.policies[policy.ID] = policy
	s.byNumber[policy.PolicyNumber] = policy.ID
	return clonePolicy(policy), nil
}

func (s *InMemoryStore) FindPolicy(_ context.Context, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePolicy(policy), nil
}

func (s *InMemoryStore) DecrementLimit(ctx context.Context, policyID id.PolicyID, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policy, ok := s.policies[policyID]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, sentinel.ErrNotFound
	}
	previous := policy.AvailableLimit
	policy.AvailableLimit = previous.Sub(amount)
	return previous, policy.AvailableLimit, nil
}

func (s *InMemoryStore) AvailableLimit(_ context.Context, policyID id.PolicyID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[policyID]
	if !ok {
		return decimal.Decimal{}, sentinel.ErrNotFound
	}
	return policy.AvailableLimit, nil
}

func (s *InMemoryStore) InsertClaim(_ context.Context, claim models.Claim) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[claim.PolicyID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	claim.ID = id.ClaimID(uuid.New())
	stored := claim
	s.claims[claim.PolicyID] = append(s.claims[claim.PolicyID], &stored)
	return &claim, nil
}

func (s *InMemoryStore) Balance(_ context.Context, policyID id.PolicyID) (models.LedgerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[policyID]
	if !ok {
		return models.LedgerBalance{}, sentinel.ErrNotFound
	}
	total := decimal.Zero
	for _, c := range s.claims[policyID] {
		total = total.Add(c.Amount)
	}
	return models.LedgerBalance{
		PolicyID:       policyID,
		CoverageAmount: policy.CoverageAmount,
		AvailableLimit: policy.AvailableLimit,
		ClaimedTotal:   total,
	}, nil
}

func (s *InMemoryStore) ListByEmail(_ context.Context, email string) ([]models.LookupRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.LookupRow
	for policyID, claims := range s.claims {
		policy := s.policies[policyID]
		if policy.Email != email {
			continue
		}
		for _, c := range claims {
			rows = append(rows, models.LookupRow{
				Name:           policy.Name,
				PolicyNumber:   policy.PolicyNumber,
				ClaimDate:      c.Date,
				ClaimAmount:    c.Amount,
				ClaimReason:    c.Reason,
				Decision:       c.Decision,
				AvailableLimit: policy.AvailableLimit,
			})
		}
	}
	sortLookupRows(rows)
	return rows, nil
}

// sortLookupRows orders rows by claim date, then policy number, so memory and Postgres agree
// on presentation order.
func sortLookupRows(rows []models.LookupRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].ClaimDate.Equal(rows[j].ClaimDate) {
			return rows[i].ClaimDate.Before(rows[j].ClaimDate)
		}
		return rows[i].PolicyNumber < rows[j].PolicyNumber
	})
}

func clonePolicy(p *models.Policy) *models.Policy {
	c := *p
	return &c
}
