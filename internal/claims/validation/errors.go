package validation

import "fmt"

// Kind tags why a submission was rejected before reaching the ledger.
type Kind string

const (
	KindMissingField    Kind = "missing_field"
	KindMalformedEmail  Kind = "malformed_email"
	KindMalformedDate   Kind = "malformed_date"
	KindPolicyExpired   Kind = "policy_expired"
	KindMalformedAmount Kind = "malformed_amount"
)

// Error is a tagged validation failure. Callers branch on Kind via errors.As.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Message: msg}
}
