package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
	"claimverifier/pkg/platform/sentinel"
	txcontext "claimverifier/pkg/platform/tx"
)

// PostgresStore persists policies (customers table) and claims in PostgreSQL.
// Every method runs on the transaction carried in ctx when there is one, so a submission's
// policy resolution, reservation and claim insert commit together.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claims store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `id, name, email, policy_number, policy_type, policy_expiry, coverage_amount, available_claim_limit, created_at`

func (s *PostgresStore) CreatePolicy(ctx context.Context, draft models.PolicyDraft, now time.Time) (*models.Policy, error) {
	query := `
		INSERT INTO customers (name, email, policy_number, policy_type, policy_expiry, coverage_amount, available_claim_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING ` + policyColumns
	policy, err := scanPolicy(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		draft.Name,
		draft.Email,
		draft.PolicyNumber,
		draft.PolicyType,
		models.DateOf(draft.Expiry),
		draft.CoverageAmount,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("create policy: %w", classify(err))
	}
	return policy, nil
}

// FindOrCreatePolicy inserts with ON CONFLICT DO NOTHING and falls back to a fresh SELECT.
// The fallback is a separate statement so it sees a row committed by a concurrent insert
// that this statement's snapshot predates.
func (s *PostgresStore) FindOrCreatePolicy(ctx context.Context, draft models.PolicyDraft, now time.Time) (*models.Policy, bool, error) {
	q := txcontext.Pick(ctx, s.db)
	insert := `
		INSERT INTO customers (name, email, policy_number, policy_type, policy_expiry, coverage_amount, available_claim_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (policy_number) DO NOTHING
		RETURNING ` + policyColumns
	policy, err := scanPolicy(q.QueryRowContext(ctx, insert,
		draft.Name,
		draft.Email,
		draft.PolicyNumber,
		draft.PolicyType,
		models.DateOf(draft.Expiry),
		draft.CoverageAmount,
		now,
	))
	if err == nil {
		return policy, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert policy: %w", classify(err))
	}

	policy, err = scanPolicy(q.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM customers WHERE policy_number = $1`, draft.PolicyNumber))
	if err != nil {
		return nil, false, fmt.Errorf("find policy by number: %w", classify(err))
	}
	return policy, false, nil
}

func (s *PostgresStore) FindPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := scanPolicy(txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM customers WHERE id = $1`, uuid.UUID(policyID)))
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", classify(err))
	}
	return policy, nil
}

// DecrementLimit is a single UPDATE ... RETURNING: the row lock taken by the UPDATE makes
// concurrent reservations on one policy serialize, and the previous value is derived from
// the same row version that was written.
func (s *PostgresStore) DecrementLimit(ctx context.Context, policyID id.PolicyID, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		UPDATE customers
		SET available_claim_limit = available_claim_limit - $2::numeric
		WHERE id = $1
		RETURNING available_claim_limit + $2::numeric, available_claim_limit
	`
	var previous, current decimal.Decimal
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(policyID), amount).Scan(&previous, &current)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("decrement available limit: %w", classify(err))
	}
	return previous, current, nil
}

func (s *PostgresStore) AvailableLimit(ctx context.Context, policyID id.PolicyID) (decimal.Decimal, error) {
	var limit decimal.Decimal
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT available_claim_limit FROM customers WHERE id = $1`, uuid.UUID(policyID)).Scan(&limit)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read available limit: %w", classify(err))
	}
	return limit, nil
}

func (s *PostgresStore) InsertClaim(ctx context.Context, claim models.Claim) (*models.Claim, error) {
	query := `
		INSERT INTO claims (user_id, claim_date, claim_amount, claim_reason, decision, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var claimID uuid.UUID
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(claim.PolicyID),
		models.DateOf(claim.Date),
		claim.Amount,
		claim.Reason,
		string(claim.Decision),
		claim.CreatedAt,
	).Scan(&claimID)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", classify(err))
	}
	claim.ID = id.ClaimID(claimID)
	return &claim, nil
}

// Balance reads the limit and the claim total in one statement, so both come from the same
// snapshot even while other submissions commit.
func (s *PostgresStore) Balance(ctx context.Context, policyID id.PolicyID) (models.LedgerBalance, error) {
	query := `
		SELECT c.coverage_amount, c.available_claim_limit, COALESCE(SUM(cl.claim_amount), 0)
		FROM customers c
		LEFT JOIN claims cl ON cl.user_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.coverage_amount, c.available_claim_limit
	`
	balance := models.LedgerBalance{PolicyID: policyID}
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(policyID)).
		Scan(&balance.CoverageAmount, &balance.AvailableLimit, &balance.ClaimedTotal)
	if err != nil {
		return models.LedgerBalance{}, fmt.Errorf("read ledger balance: %w", classify(err))
	}
	return balance, nil
}

func (s *PostgresStore) ListByEmail(ctx context.Context, email string) ([]models.LookupRow, error) {
	query := `
		SELECT c.name, c.policy_number, cl.claim_date, cl.claim_amount, cl.claim_reason, cl.decision, c.available_claim_limit
		FROM customers c
		JOIN claims cl ON c.id = cl.user_id
		WHERE c.email = $1
		ORDER BY cl.claim_date, c.policy_number, cl.created_at
	`
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("query claims by email: %w", classify(err))
	}
	defer rows.Close()

	var out []models.LookupRow
	for rows.Next() {
		var (
			row      models.LookupRow
			decision string
		)
		if err := rows.Scan(&row.Name, &row.PolicyNumber, &row.ClaimDate, &row.ClaimAmount, &row.ClaimReason, &decision, &row.AvailableLimit); err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		if row.Decision, err = models.ParseDecision(decision); err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}
	return out, nil
}

type policyRow interface {
	Scan(dest ...any) error
}

func scanPolicy(row policyRow) (*models.Policy, error) {
	var (
		p        models.Policy
		policyID uuid.UUID
	)
	if err := row.Scan(&policyID, &p.Name, &p.Email, &p.PolicyNumber, &p.PolicyType, &p.Expiry, &p.CoverageAmount, &p.AvailableLimit, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.Expiry = models.DateOf(p.Expiry)
	return &p, nil
}

// PostgreSQL error codes the store translates into sentinels.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps driver errors onto sentinels while keeping the original error in the chain.
// sql.ErrNoRows is left as is so callers that expect it can still match it.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", sentinel.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}
