package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"claimverifier/internal/claims/models"
	"claimverifier/internal/claims/recorder"
	"claimverifier/internal/claims/validation"
	id "claimverifier/pkg/domain"
	dErrors "claimverifier/pkg/domain-errors"
	"claimverifier/pkg/platform/httputil"
	"claimverifier/pkg/requestcontext"
)

// Service is the claim submission and lookup surface.
type Service interface {
	Submit(ctx context.Context, raw models.RawSubmission) (*recorder.Receipt, error)
	ClaimsByEmail(ctx context.Context, email string) ([]models.LookupRow, error)
}

// LimitReader reads a policy's current available limit.
type LimitReader interface {
	CurrentLimit(ctx context.Context, policyID id.PolicyID) (decimal.Decimal, error)
}

// Handler serves the claims HTTP API.
type Handler struct {
	service Service
	limits  LimitReader
	logger  *slog.Logger
}

func New(service Service, limits LimitReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, limits: limits, logger: logger}
}

// Register registers the claims routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/claims", h.handleSubmitClaim)
	r.Get("/v1/claims", h.handleClaimsByEmail)
	r.Get("/v1/policies/{policyID}/limit", h.handleCurrentLimit)
}

func (h *Handler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitClaimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.service.Submit(ctx, req.toRaw())
	if err != nil {
		h.writeError(ctx, w, err, "claim submission failed")
		return
	}
	if len(receipt.SinkFailures) > 0 {
		h.logger.WarnContext(ctx, "claim committed with export failures",
			"request_id", requestID,
			"claim_id", receipt.ClaimID,
			"failures", len(receipt.SinkFailures),
		)
	}
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) handleClaimsByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := r.URL.Query().Get("email")

	rows, err := h.service.ClaimsByEmail(ctx, address)
	if err != nil {
		h.writeError(ctx, w, err, "claim lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLookupResponse(address, rows))
}

func (h *Handler) handleCurrentLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := h.limits.CurrentLimit(ctx, policyID)
	if err != nil {
		h.writeError(ctx, w, err, "limit lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LimitResponse{
		PolicyID:            policyID.String(),
		AvailableClaimLimit: limit.StringFixed(2),
	})
}

// writeError maps validation failures to the CodeValidation status and everything else
// through the domain error codes. Server-side failures are logged at error level.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		h.logger.InfoContext(ctx, "request failed validation",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
			"kind", verr.Kind,
			"field", verr.Field,
		)
		httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeValidation), toValidationErrorResponse(verr))
		return
	}
	if status := dErrors.ToHTTPStatus(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
			"user_agent", requestcontext.UserAgent(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
