package core

import "context"

// Ports define interfaces for external dependencies

// ============================================
// ACCOUNT DIRECTORY PORT
// ============================================

// AccountDirectory mirrors the admin primitives of the authoritative account
// store: create-by-placeholder-email, lookups, metadata updates, and the
// single-use login-ticket pair. Each call is atomic on its own, but calls do
// not compose atomically - callers must use the exists-then-reuse pattern
// instead of assuming create-or-get.
type AccountDirectory interface {
	// CreateAccount inserts a new account. Returns ErrAccountExists when the
	// email is already taken.
	CreateAccount(a *InternalAccount) error
	GetAccountByID(id string) (*InternalAccount, error)
	GetAccountByEmail(email string) (*InternalAccount, error)
	UpdateAccountMetadata(id string, metadata map[string]string) error

	// CreateTicket persists a single-use login ticket (hash only).
	CreateTicket(t *AuthTicket) error

	// RedeemTicketByHash consumes the ticket in the same operation that reads
	// it, so a second redemption sees ErrTicketNotFound. A consumed but
	// expired ticket returns ErrTicketExpired.
	RedeemTicketByHash(hash string) (*AuthTicket, error)

	DeleteExpiredTickets() (int, error)
}

// ============================================
// IDENTITY LINK PORT
// ============================================

// LinkStorage holds the external-to-internal identity mapping. Exactly one
// link exists per distinct external id.
type LinkStorage interface {
	GetLinkByExternalID(externalID string) (*IdentityLink, error)
	GetLinkByInternalID(internalID string) (*IdentityLink, error)

	// UpsertLink inserts the link or, when a link for the same external id
	// already exists, refreshes its display metadata. Keyed by external id so
	// a retried registration cannot produce two rows.
	UpsertLink(l *IdentityLink) error

	// UpdateLinkProfile refreshes display name and picture on login.
	UpdateLinkProfile(externalID, displayName, pictureURL string) error

	DeleteLink(externalID string) error
}

// ============================================
// SESSION PORT
// ============================================

// SessionStorage defines session-related database operations
type SessionStorage interface {
	CreateSession(session *Session) error
	GetSessionByHash(tokenHash string) (*Session, error)
	GetSessionByID(id string) (*Session, error)
	DeleteSessionByID(id string) error
	DeleteSessionByHash(tokenHash string) error
	DeleteAccountSessions(accountID string) error
	DeleteExpiredSessions() (int, error)
}

// StorageAdapter is the full storage surface the bridge needs.
type StorageAdapter interface {
	AccountDirectory
	LinkStorage
	SessionStorage
}

// ============================================
// HINT STORE PORT (client-side Persistence Cache)
// ============================================

// HintStore is a small named-string-value store used only to shorten
// perceived load time. Every value is a hint: the system stays correct when
// any subset is missing or stale, so reads report absence instead of errors
// and local failures are swallowed by implementations.
type HintStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Clear()
}

// ============================================
// HTTP PORT
// ============================================

// ActionHandler dispatches one named bridge action with a raw JSON payload.
type ActionHandler interface {
	Handle(ctx context.Context, name string, payload []byte) (any, error)
}

// RequestMeta carries transport-level request attributes into action
// handlers: the caller's address, user agent and bearer token. Adapters
// populate it; handlers read it instead of trusting payload fields for
// these values.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Token     string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// SessionResolver validates a bearer token and returns the session data,
// used by adapters to build route-protecting middleware.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*SessionData, error)
}

// HTTPAdapter mounts the single action endpoint onto a web framework.
type HTTPAdapter interface {
	RegisterRoutes(handler ActionHandler, basePath string) error
}
