package core

import "time"

// ExternalIdentity is the profile the external identity provider vouches for.
//
// Immutable per provider; refreshed on every successful login.
type ExternalIdentity struct {
	ExternalUserID string `json:"externalUserId"`
	DisplayName    string `json:"displayName"`
	PictureURL     string `json:"pictureUrl,omitempty"`
}

// IdentityLink is the durable mapping between an external identity and an
// internal account. At most one link exists per external id, and at most one
// external identity may claim an internal account at link time.
type IdentityLink struct {
	InternalUserID       string    `json:"internalUserId"`
	ExternalUserID       string    `json:"externalUserId"`
	DisplayName          string    `json:"displayName"`
	PictureURL           string    `json:"pictureUrl,omitempty"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// InternalAccount is a row in the authoritative account directory.
//
// Email is the synthetic placeholder address derived from the external id.
// It only addresses the directory's email-keyed primitives and is never
// shown to the user.
type InternalAccount struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// AuthTicket is a one-time credential minted after identity resolution and
// redeemable exactly once for a live session. Only the hash is persisted;
// the raw value is returned to the caller once and never stored.
type AuthTicket struct {
	Hash      string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session represents an active login session created by ticket redemption.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	TokenHash string    `json:"-"` // Never expose in JSON
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionData combines the account, its identity link and the session.
// The model returned to clients.
type SessionData struct {
	Account *InternalAccount `json:"account"`
	Link    *IdentityLink    `json:"link,omitempty"`
	Session *Session         `json:"session"`
}
