package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"claimverifier/internal/platform/metrics"
	id "claimverifier/pkg/domain"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// UnitOfWork runs fn in one transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error
}

// Worker relays unpublished events to a Publisher on a fixed poll interval. Delivery is
// at-least-once: an event published just before a failed commit is sent again.
type Worker struct {
	store        Store
	publisher    Publisher
	tx           UnitOfWork
	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(store Store, publisher Publisher, tx UnitOfWork, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:        store,
		publisher:    publisher,
		tx:           tx,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Batch failures are logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many events were marked published. It stops
// at the first publish failure so ordering is preserved.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	var publishErr error
	err := w.tx.RunInTx(ctx, "outbox", func(ctx context.Context) error {
		publishErr = nil
		events, err := w.store.FetchUnpublished(ctx, w.batchSize)
		if err != nil {
			return err
		}
		ids := make([]id.EventID, 0, len(events))
		for _, e := range events {
			if publishErr = w.publisher.Publish(ctx, e); publishErr != nil {
				w.metrics.IncrementOutboxFailure()
				break
			}
			ids = append(ids, e.ID)
		}
		if err := w.store.MarkPublished(ctx, ids, w.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	w.metrics.AddOutboxPublished(published)
	return published, publishErr
}
