package core

import "errors"

// Transport errors - recoverable by retrying the whole login attempt,
// never partially retried mid-exchange.
var (
	ErrProviderUnavailable  = errors.New("identity provider unreachable")
	ErrDirectoryUnavailable = errors.New("account directory unreachable")
)

// Protocol errors - logged and surfaced as a generic login failure,
// never silently ignored.
var (
	ErrMissingRedirectParams      = errors.New("missing expected redirect parameters")
	ErrMalformedProviderResponse  = errors.New("malformed identity provider response")
	ErrStateMismatch              = errors.New("anti-forgery state mismatch")
	ErrEmbeddedTokenSubjectChange = errors.New("embedded token does not belong to the claimed external identity")
)

// Conflict errors - rejected explicitly; auto-retry would not help.
var (
	// ErrLinkConflict means an external identity attempted to claim an
	// internal account already linked to a different external identity.
	ErrLinkConflict = errors.New("account already linked to a different external identity")
)

// Directory and link storage sentinels.
var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrLinkNotFound    = errors.New("identity link not found")
)

// Ticket errors.
var (
	ErrTicketNotFound = errors.New("auth ticket not found or already redeemed")
	ErrTicketExpired  = errors.New("auth ticket expired")
)

// Session errors.
var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrCacheNotFound   = errors.New("session not found in cache")
)

// Config errors (server-side configuration).
var (
	ErrProviderRequired    = errors.New("oauth provider is required")
	ErrDBAdapterRequired   = errors.New("database adapter is required")
	ErrHTTPAdapterRequired = errors.New("http adapter is required")
)
