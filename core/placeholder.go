package core

import "strings"

// placeholderDomain addresses the directory's email-keyed primitives.
// Addresses under it are synthetic and never shown to the user.
const placeholderDomain = "line.login.placeholder"

// PlaceholderEmail derives the deterministic synthetic address for an
// external identity. The same external id always maps to the same address,
// which is what makes account creation retry-safe.
func PlaceholderEmail(externalID string) string {
	return externalID + "@" + placeholderDomain
}

// IsPlaceholderEmail reports whether an address was derived by
// PlaceholderEmail.
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(email, "@"+placeholderDomain)
}

// ExternalIDFromPlaceholder recovers the external id from a placeholder
// address. Returns "" when the address is not a placeholder.
func ExternalIDFromPlaceholder(email string) string {
	if !IsPlaceholderEmail(email) {
		return ""
	}
	return strings.TrimSuffix(email, "@"+placeholderDomain)
}
