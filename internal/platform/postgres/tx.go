package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	dErrors "claimverifier/pkg/domain-errors"
	txcontext "claimverifier/pkg/platform/tx"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

const (
	defaultTxTimeout  = 5 * time.Second
	defaultMaxRetries = 3
)

// TxRunner runs a unit of work in one SQL transaction carried through context. Serialization
// failures and deadlocks restart the whole unit of work.
type TxRunner struct {
	db         *sql.DB
	timeout    time.Duration
	maxRetries uint64
	logger     *slog.Logger
}

type TxOption func(*TxRunner)

func WithTxTimeout(d time.Duration) TxOption {
	return func(r *TxRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMaxRetries(n uint64) TxOption {
	return func(r *TxRunner) {
		r.maxRetries = n
	}
}

func WithTxLogger(logger *slog.Logger) TxOption {
	return func(r *TxRunner) {
		r.logger = logger
	}
}

func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{
		db:         db,
		timeout:    defaultTxTimeout,
		maxRetries: defaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunInTx executes fn inside a transaction. The lock key is informational here; row locks
// taken by the statements in fn provide the serialization.
func (r *TxRunner) RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	attempt := 0
	op := func() error {
		attempt++
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if IsRetryable(err) && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "retrying transaction", "lock_key", lockKey, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), r.maxRetries), ctx)
	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && !dErrors.HasCode(err, dErrors.CodePersistence) {
		return dErrors.Wrap(err, dErrors.CodePersistence, "transaction timed out")
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to commit transaction")
	}
	return nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

// IsRetryable reports whether err carries a Postgres serialization or deadlock failure.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
