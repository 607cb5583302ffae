// Package email holds the deliberately weak address handling used by claim submission.
package email

import "strings"

// Normalize trims surrounding whitespace and lower-cases the address so lookups by email
// match regardless of how the policyholder typed it. Addresses are stored normalized, which
// makes claims-by-email lookup case-insensitive rather than an exact match.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// HasAddressShape reports whether the address contains both '@' and '.'.
// This is not an RFC 5322 validator.
func HasAddressShape(address string) bool {
	return strings.Contains(address, "@") && strings.Contains(address, ".")
}
