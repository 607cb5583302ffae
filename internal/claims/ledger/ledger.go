// Package ledger owns every mutation of a policy's available claim limit.
//
// The limit starts at the coverage amount and only moves through Reserve, which subtracts
// the claim amount in one atomic read-modify-write. Reserve never refuses an amount larger
// than the remaining limit; it deducts anyway and reports Exceeded so the verifier can flag
// the claim.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/models"
	id "claimverifier/pkg/domain"
	dErrors "claimverifier/pkg/domain-errors"
	"claimverifier/pkg/platform/sentinel"
	"claimverifier/pkg/requestcontext"
)

// Ledger is the PolicyLedger service.
type Ledger struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// New constructs a Ledger over store.
func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("claimverifier/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CreatePolicy inserts a new policy with its available limit set to the coverage amount.
func (l *Ledger) CreatePolicy(ctx context.Context, draft models.PolicyDraft) (id.PolicyID, error) {
	if err := draft.Validate(); err != nil {
		return id.PolicyID{}, err
	}
	policy, err := l.store.CreatePolicy(ctx, draft, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return id.PolicyID{}, dErrors.Wrap(err, dErrors.CodeConflict, "policy number already exists")
		}
		return id.PolicyID{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to create policy")
	}
	l.logger.InfoContext(ctx, "policy created",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policy.ID,
		"policy_number", policy.PolicyNumber,
	)
	return policy.ID, nil
}

// FindOrCreatePolicy resolves a policy by policy number, creating it from draft when it does
// not exist yet. An existing policy keeps its stored coverage, expiry and limit.
func (l *Ledger) FindOrCreatePolicy(ctx context.Context, draft models.PolicyDraft) (*models.Policy, bool, error) {
	if err := draft.Validate(); err != nil {
		return nil, false, err
	}
	policy, created, err := l.store.FindOrCreatePolicy(ctx, draft, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodePersistence, "failed to resolve policy")
	}
	if created {
		l.logger.InfoContext(ctx, "policy created",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policy.ID,
			"policy_number", policy.PolicyNumber,
		)
	}
	return policy, created, nil
}

// Reserve atomically deducts amount from the policy's available limit.
func (l *Ledger) Reserve(ctx context.Context, policyID id.PolicyID, amount decimal.Decimal) (models.Reservation, error) {
	if amount.IsNegative() {
		return models.Reservation{}, dErrors.New(dErrors.CodeInvariantViolation, "reservation amount must not be negative")
	}

	ctx, span := l.tracer.Start(ctx, "ledger.Reserve", trace.WithAttributes(
		attribute.String("policy_id", policyID.String()),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	start := time.Now()
	previous, current, err := l.store.DecrementLimit(ctx, policyID, amount)
	l.metrics.ObserveReserveLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Reservation{}, dErrors.Wrap(err, dErrors.CodeNotFound, "policy not found")
		}
		return models.Reservation{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to reserve claim limit")
	}

	reservation := models.NewReservation(policyID, amount, previous)
	if !reservation.NewLimit.Equal(current) {
		// the store wrote something other than previous-amount
		return models.Reservation{}, dErrors.New(dErrors.CodeInconsistency, "ledger write did not match requested deduction")
	}
	if reservation.Exceeded {
		l.metrics.IncrementLimitExceeded()
		l.logger.WarnContext(ctx, "claim exceeds available limit",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policyID,
			"amount", amount.String(),
			"previous_limit", previous.String(),
			"new_limit", current.String(),
		)
	}
	span.SetAttributes(attribute.Bool("exceeded", reservation.Exceeded))
	return reservation, nil
}

// CurrentLimit is a point-in-time read of the available limit.
func (l *Ledger) CurrentLimit(ctx context.Context, policyID id.PolicyID) (decimal.Decimal, error) {
	limit, err := l.store.AvailableLimit(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return decimal.Decimal{}, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return decimal.Decimal{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read available limit")
	}
	return limit, nil
}

// Policy returns a read-only snapshot of the policy for verification.
func (l *Ledger) Policy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := l.store.FindPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load policy")
	}
	return policy, nil
}
