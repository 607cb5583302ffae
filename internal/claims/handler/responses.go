package handler

import (
	"claimverifier/internal/claims/models"
	"claimverifier/internal/claims/recorder"
	"claimverifier/internal/claims/validation"
)

const noClaimsMessage = "No claims found for this email."

type ReceiptResponse struct {
	ClaimID             string                `json:"claim_id"`
	PolicyID            string                `json:"policy_id"`
	PolicyNumber        string                `json:"policy_number"`
	PolicyCreated       bool                  `json:"policy_created"`
	Decision            string                `json:"decision"`
	Reason              string                `json:"reason"`
	Message             string                `json:"message"`
	PreviousLimit       string                `json:"previous_claim_limit"`
	AvailableClaimLimit string                `json:"available_claim_limit"`
	Warnings            []string              `json:"warnings,omitempty"`
	SinkFailures        []SinkFailureResponse `json:"sink_failures,omitempty"`
}

// SinkFailureResponse reports an export that failed after the claim was committed.
type SinkFailureResponse struct {
	Sink  string `json:"sink"`
	Error string `json:"error"`
}

type LookupRowResponse struct {
	Name                string `json:"name"`
	PolicyNumber        string `json:"policy_number"`
	ClaimDate           string `json:"claim_date"`
	ClaimAmount         string `json:"claim_amount"`
	ClaimReason         string `json:"claim_reason"`
	Decision            string `json:"decision"`
	AvailableClaimLimit string `json:"available_claim_limit"`
}

type LookupResponse struct {
	Email   string              `json:"email"`
	Claims  []LookupRowResponse `json:"claims"`
	Message string              `json:"message,omitempty"`
}

type LimitResponse struct {
	PolicyID            string `json:"policy_id"`
	AvailableClaimLimit string `json:"available_claim_limit"`
}

// ValidationErrorResponse is the 422 body; Error carries the validation kind.
type ValidationErrorResponse struct {
	Error            string `json:"error"`
	Field            string `json:"field,omitempty"`
	ErrorDescription string `json:"error_description"`
}

func toReceiptResponse(r *recorder.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ClaimID:             r.ClaimID.String(),
		PolicyID:            r.PolicyID.String(),
		PolicyNumber:        r.PolicyNumber,
		PolicyCreated:       r.PolicyCreated,
		Decision:            r.Decision.String(),
		Reason:              string(r.Reason),
		Message:             r.Message,
		PreviousLimit:       r.PreviousLimit.StringFixed(2),
		AvailableClaimLimit: r.NewLimit.StringFixed(2),
		Warnings:            r.Warnings,
	}
	for _, f := range r.SinkFailures {
		resp.SinkFailures = append(resp.SinkFailures, SinkFailureResponse{Sink: f.Sink, Error: f.Error})
	}
	return resp
}

func toLookupResponse(email string, rows []models.LookupRow) LookupResponse {
	resp := LookupResponse{Email: email, Claims: make([]LookupRowResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Claims = append(resp.Claims, LookupRowResponse{
			Name:                row.Name,
			PolicyNumber:        row.PolicyNumber,
			ClaimDate:           row.ClaimDate.Format("2006-01-02"),
			ClaimAmount:         row.ClaimAmount.StringFixed(2),
			ClaimReason:         row.ClaimReason,
			Decision:            row.Decision.String(),
			AvailableClaimLimit: row.AvailableLimit.StringFixed(2),
		})
	}
	if len(rows) == 0 {
		resp.Message = noClaimsMessage
	}
	return resp
}

func toValidationErrorResponse(err *validation.Error) ValidationErrorResponse {
	return ValidationErrorResponse{
		Error:            string(err.Kind),
		Field:            err.Field,
		ErrorDescription: err.Message,
	}
}
