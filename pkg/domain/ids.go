// Package domain holds typed identifiers shared across the claims modules.
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "claimverifier/pkg/domain-errors"
)

// PolicyID identifies a policy row (customers table). Assigned by the store on creation.
type PolicyID uuid.UUID

// ClaimID identifies a claim row.
type ClaimID uuid.UUID

// EventID identifies an outbox event.
type EventID uuid.UUID

func (id PolicyID) String() string { return uuid.UUID(id).String() }
func (id PolicyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ClaimID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) String() string { return uuid.UUID(id).String() }

// ParsePolicyID parses a non-nil UUID policy identifier.
func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s, "policy ID")
	return PolicyID(u), err
}

// ParseClaimID parses a non-nil UUID claim identifier.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim ID")
	return ClaimID(u), err
}

// maxIDLength bounds input before handing it to uuid.Parse.
const maxIDLength = 45

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
