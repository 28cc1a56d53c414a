// Package provider abstracts the external identity provider. Implementations
// return identity facts only and must not perform account creation, linking,
// or session management - all auth decisions belong to the bridge service.
package provider

import (
	"context"

	"github.com/kairan-app/kairan/core"
)

// Credentials is what a completed authorization-code exchange yields.
type Credentials struct {
	AccessToken string
	// IDTokenSubject is the verified subject claim of the id_token, when
	// the provider issued one. Empty otherwise.
	IDTokenSubject string
}

// OAuthProvider is the contract every external identity provider must
// implement.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "line").
	Name() string

	// AuthorizeURL builds the provider authorization URL for the given
	// anti-forgery state and redirect target.
	AuthorizeURL(state, redirectURI string) string

	// ExchangeCode exchanges the authorization code for provider
	// credentials.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Credentials, error)

	// FetchProfile resolves an access token to the external profile.
	FetchProfile(ctx context.Context, accessToken string) (*core.ExternalIdentity, error)

	// VerifyEmbeddedToken checks that an access token obtained through the
	// provider's in-app SDK was issued for this application and is still
	// live. It proves token provenance only; the profile still comes from
	// FetchProfile.
	VerifyEmbeddedToken(ctx context.Context, accessToken string) error
}
