// Package recorder runs a claim submission end to end: validation, the atomic
// reserve-decide-insert transaction, the post-commit ledger check and the best-effort sinks.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/models"
	"claimverifier/internal/claims/validation"
	"claimverifier/internal/platform/outbox"
	dErrors "claimverifier/pkg/domain-errors"
	"claimverifier/pkg/requestcontext"
)

// Recorder is the ClaimRecorder service.
type Recorder struct {
	validator   SubmissionValidator
	ledger      PolicyLedger
	verifier    ClaimVerifier
	claims      ClaimStore
	tx          UnitOfWork
	outbox      OutboxWriter
	lookup      Lookup
	invalidator LookupInvalidator
	sinks       []Sink
	loc         *time.Location
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithSinks appends downstream exporters, run in order after commit.
func WithSinks(sinks ...Sink) Option {
	return func(r *Recorder) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// WithLookup replaces the claims store as the source for ClaimsByEmail, typically with a
// cache in front of it.
func WithLookup(lookup Lookup, invalidator LookupInvalidator) Option {
	return func(r *Recorder) {
		r.lookup = lookup
		r.invalidator = invalidator
	}
}

// WithLocation sets the time zone that defines the claim date.
func WithLocation(loc *time.Location) Option {
	return func(r *Recorder) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// Deps are the required collaborators.
type Deps struct {
	Validator SubmissionValidator
	Ledger    PolicyLedger
	Verifier  ClaimVerifier
	Claims    ClaimStore
	Tx        UnitOfWork
	Outbox    OutboxWriter
}

func New(deps Deps, opts ...Option) (*Recorder, error) {
	switch {
	case deps.Validator == nil:
		return nil, errors.New("validator is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Verifier == nil:
		return nil, errors.New("verifier is required")
	case deps.Claims == nil:
		return nil, errors.New("claim store is required")
	case deps.Tx == nil:
		return nil, errors.New("unit of work is required")
	case deps.Outbox == nil:
		return nil, errors.New("outbox is required")
	}
	r := &Recorder{
		validator: deps.Validator,
		ledger:    deps.Ledger,
		verifier:  deps.Verifier,
		claims:    deps.Claims,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		lookup:    deps.Claims,
		loc:       time.UTC,
		logger:    slog.Default(),
		tracer:    otel.Tracer("claimverifier/recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Submit validates raw and, if it passes, commits the policy resolution, reservation, claim
// row and outbox event in one transaction. Validation failures return a *validation.Error
// and leave the ledger untouched.
func (r *Recorder) Submit(ctx context.Context, raw models.RawSubmission) (*Receipt, error) {
	now := requestcontext.Now(ctx)
	sub, err := r.validator.Validate(raw, now)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			r.metrics.IncrementValidationRejection(string(verr.Kind))
		}
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "recorder.Submit", trace.WithAttributes(
		attribute.String("policy_number", sub.PolicyNumber),
	))
	defer span.End()

	var (
		policy      *models.Policy
		created     bool
		reservation models.Reservation
		result      models.DecisionResult
		claim       *models.Claim
	)
	err = r.tx.RunInTx(ctx, sub.PolicyNumber, func(ctx context.Context) error {
		var err error
		policy, created, err = r.ledger.FindOrCreatePolicy(ctx, sub.PolicyDraft())
		if err != nil {
			return err
		}
		// last exit before the ledger write
		if err := ctx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "submission abandoned")
		}
		reservation, err = r.ledger.Reserve(ctx, policy.ID, sub.ClaimAmount)
		if err != nil {
			return err
		}
		result = r.verifier.Decide(ctx, policy, sub.ClaimAmount, reservation)

		claim, err = r.claims.InsertClaim(ctx, models.Claim{
			PolicyID:  policy.ID,
			Date:      models.DayIn(now, r.loc),
			Amount:    sub.ClaimAmount,
			Reason:    sub.Reason,
			Decision:  result.Decision,
			CreatedAt: now,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to record claim")
		}

		event, err := outbox.NewEvent(EventClaimRecorded, policy.PolicyNumber, claimRecordedPayload{
			ClaimID:      claim.ID.String(),
			PolicyID:     policy.ID.String(),
			PolicyNumber: policy.PolicyNumber,
			Email:        policy.Email,
			ClaimDate:    claim.Date.Format("2006-01-02"),
			ClaimAmount:  claim.Amount,
			Decision:     claim.Decision,
			Reason:       string(result.Reason),
			NewLimit:     reservation.NewLimit,
			RecordedAt:   now,
		}, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build claim event")
		}
		if err := r.outbox.Append(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to write claim event")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		r.logger.ErrorContext(ctx, "claim submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"policy_number", sub.PolicyNumber,
			"error", err,
		)
		if !dErrors.HasCode(err, dErrors.CodePersistence) && isStoreFailure(err) {
			err = dErrors.Wrap(err, dErrors.CodePersistence, "claim store unavailable")
		}
		return nil, err
	}

	if err := r.checkConsistency(ctx, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger inconsistency")
		return nil, err
	}

	r.metrics.IncrementDecision(result.Decision.String())
	span.SetAttributes(
		attribute.String("decision", result.Decision.String()),
		attribute.Bool("exceeded", reservation.Exceeded),
	)
	r.logger.InfoContext(ctx, "claim recorded",
		"request_id", requestcontext.RequestID(ctx),
		"claim_id", claim.ID,
		"policy_id", policy.ID,
		"decision", result.Decision,
		"reason", result.Reason,
	)

	if r.invalidator != nil {
		if err := r.invalidator.Invalidate(ctx, policy.Email); err != nil {
			r.logger.WarnContext(ctx, "lookup cache invalidation failed", "email", policy.Email, "error", err)
		}
	}

	receipt := &Receipt{
		ClaimID:       claim.ID,
		PolicyID:      policy.ID,
		PolicyNumber:  policy.PolicyNumber,
		PolicyCreated: created,
		Decision:      result.Decision,
		Reason:        result.Reason,
		Message:       result.Message,
		PreviousLimit: reservation.Previous,
		NewLimit:      reservation.NewLimit,
		Warnings:      sub.Warnings,
	}
	if !created && detailsDiffer(policy, sub) {
		receipt.Warnings = append(receipt.Warnings, models.WarningPolicyDetailsDiffer)
	}

	record := models.ClaimRecord{Policy: *policy, Claim: *claim, Result: result}
	record.Policy.AvailableLimit = reservation.NewLimit
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, record); err != nil {
			r.metrics.IncrementSinkFailure(sink.Name())
			r.logger.WarnContext(ctx, "claim export failed",
				"request_id", requestcontext.RequestID(ctx),
				"claim_id", claim.ID,
				"sink", sink.Name(),
				"error", err,
			)
			receipt.SinkFailures = append(receipt.SinkFailures, SinkFailure{Sink: sink.Name(), Error: err.Error()})
		}
	}
	return receipt, nil
}

// checkConsistency reads the policy limit and its claim total in one snapshot, serialized
// with other submissions for the same policy.
func (r *Recorder) checkConsistency(ctx context.Context, policy *models.Policy) error {
	var balance models.LedgerBalance
	err := r.tx.RunInTx(ctx, policy.PolicyNumber, func(ctx context.Context) error {
		var err error
		balance, err = r.claims.Balance(ctx, policy.ID)
		return err
	})
	if err != nil {
		// the claim is committed; an unreadable balance is not evidence of drift
		r.logger.WarnContext(ctx, "ledger consistency check skipped", "policy_id", policy.ID, "error", err)
		return nil
	}
	if balance.Consistent() {
		return nil
	}
	r.metrics.IncrementInconsistency()
	r.logger.ErrorContext(ctx, "ledger inconsistency detected",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policy.ID,
		"coverage_amount", balance.CoverageAmount.String(),
		"available_limit", balance.AvailableLimit.String(),
		"claimed_total", balance.ClaimedTotal.String(),
	)
	return dErrors.New(dErrors.CodeInconsistency, "ledger and claim rows disagree")
}

// ClaimsByEmail returns every claim filed under policies registered to address. An address
// with no claims yields an empty slice.
func (r *Recorder) ClaimsByEmail(ctx context.Context, address string) ([]models.LookupRow, error) {
	normalized, err := validation.ValidateEmail(address)
	if err != nil {
		return nil, err
	}
	rows, err := r.lookup.ListByEmail(ctx, normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to look up claims")
	}
	if rows == nil {
		rows = []models.LookupRow{}
	}
	return rows, nil
}

func detailsDiffer(p *models.Policy, sub models.ValidatedSubmission) bool {
	return p.Name != sub.Name ||
		p.Email != sub.Email ||
		p.PolicyType != sub.PolicyType ||
		!p.Expiry.Equal(models.DateOf(sub.Expiry)) ||
		!p.CoverageAmount.Equal(sub.Coverage)
}

func isStoreFailure(err error) bool {
	var de *dErrors.Error
	return !errors.As(err, &de)
}
