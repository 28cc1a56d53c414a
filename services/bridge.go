package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/pkg/crypto"
	"github.com/kairan-app/kairan/provider"
)

// Resolution statuses returned by the exchange operations.
const (
	StatusNew      = "new"
	StatusExisting = "existing"
)

// DefaultTicketTTL bounds how long a minted auth ticket stays redeemable.
const DefaultTicketTTL = 5 * time.Minute

type BridgeConfig struct {
	// RedirectURI is the default OAuth callback URL, used when the caller
	// does not supply one.
	RedirectURI string

	// TicketTTL defaults to DefaultTicketTTL.
	TicketTTL time.Duration
}

// BridgeService resolves verified external identities into internal
// accounts. It creates nothing during exchange: an unknown identity is
// reported back as status "new" and only an explicit Register call writes
// the account and link rows.
type BridgeService struct {
	config          BridgeConfig
	db              core.StorageAdapter
	providers       *provider.Registry
	defaultProvider string
	sessionManager  *core.SessionManager
	logger          *slog.Logger
}

// Ensure BridgeService can back the adapters' protected middleware.
var _ core.SessionResolver = (*BridgeService)(nil)

func NewBridgeService(config BridgeConfig, db core.StorageAdapter, providers *provider.Registry, defaultProvider string, sessionManager *core.SessionManager, logger *slog.Logger) *BridgeService {
	if config.TicketTTL <= 0 {
		config.TicketTTL = DefaultTicketTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BridgeService{
		config:          config,
		db:              db,
		providers:       providers,
		defaultProvider: defaultProvider,
		sessionManager:  sessionManager,
		logger:          logger,
	}
}

func (s *BridgeService) providerFor(name string) (provider.OAuthProvider, error) {
	if name == "" {
		name = s.defaultProvider
	}
	return s.providers.Get(name)
}

// AuthorizeURLResult carries the provider login URL plus the anti-forgery
// state the caller must persist and compare on redirect.
type AuthorizeURLResult struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// IssueAuthorizeURL generates a fresh anti-forgery state and builds the
// provider authorization URL embedding it.
func (s *BridgeService) IssueAuthorizeURL(ctx context.Context, providerName, redirectURI string) (*AuthorizeURLResult, error) {
	p, err := s.providerFor(providerName)
	if err != nil {
		return nil, err
	}

	if redirectURI == "" {
		redirectURI = s.config.RedirectURI
	}

	state, err := crypto.RandomToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &AuthorizeURLResult{
		URL:   p.AuthorizeURL(state, redirectURI),
		State: state,
	}, nil
}

// ResolveResult reports how a verified external identity maps onto the
// internal directory. Status "existing" includes a single-use ticket; status
// "new" carries only the profile so the caller can run registration.
type ResolveResult struct {
	Status    string                 `json:"status"`
	Profile   *core.ExternalIdentity `json:"externalProfile"`
	AccountID string                 `json:"accountId,omitempty"`
	Ticket    string                 `json:"ticket,omitempty"`
}

// ExchangeCode completes the authorization-code flow: exchanges the code,
// fetches the verified profile and resolves it against the link table.
func (s *BridgeService) ExchangeCode(ctx context.Context, providerName, code, redirectURI string) (*ResolveResult, error) {
	p, err := s.providerFor(providerName)
	if err != nil {
		return nil, err
	}

	if redirectURI == "" {
		redirectURI = s.config.RedirectURI
	}

	// Step 1: Exchange the code for credentials
	creds, err := p.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	// Step 2: Fetch the profile the provider vouches for
	identity, err := p.FetchProfile(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	// Step 3: The id_token subject, when present, must match the profile
	if creds.IDTokenSubject != "" && creds.IDTokenSubject != identity.ExternalUserID {
		return nil, fmt.Errorf("%w: id_token subject %q does not match profile",
			core.ErrMalformedProviderResponse, creds.IDTokenSubject)
	}

	return s.resolveIdentity(ctx, identity)
}

// ExchangeEmbeddedToken resolves an access token obtained by the in-app SDK.
// The token is verified with the provider before the profile is trusted.
// claimedExternalID, when non-empty, pins the token to the identity the
// client believes it holds.
func (s *BridgeService) ExchangeEmbeddedToken(ctx context.Context, providerName, accessToken, claimedExternalID string) (*ResolveResult, error) {
	p, err := s.providerFor(providerName)
	if err != nil {
		return nil, err
	}

	// Step 1: Verify the token really came from this channel
	if err := p.VerifyEmbeddedToken(ctx, accessToken); err != nil {
		return nil, err
	}

	// Step 2: Fetch the profile
	identity, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// Step 3: Reject tokens whose subject changed under the client
	if claimedExternalID != "" && claimedExternalID != identity.ExternalUserID {
		return nil, core.ErrEmbeddedTokenSubjectChange
	}

	return s.resolveIdentity(ctx, identity)
}

// resolveIdentity is the shared tail of both exchange paths. It never
// creates accounts or links.
func (s *BridgeService) resolveIdentity(ctx context.Context, identity *core.ExternalIdentity) (*ResolveResult, error) {
	link, err := s.db.GetLinkByExternalID(identity.ExternalUserID)
	if err != nil {
		if errors.Is(err, core.ErrLinkNotFound) {
			s.logger.InfoContext(ctx, "resolved new external identity",
				"external_user_id", identity.ExternalUserID)
			return &ResolveResult{Status: StatusNew, Profile: identity}, nil
		}
		return nil, fmt.Errorf("failed to look up identity link: %w", err)
	}

	// Refresh display metadata on every successful login. A failed refresh
	// must not block the login itself.
	if err := s.db.UpdateLinkProfile(identity.ExternalUserID, identity.DisplayName, identity.PictureURL); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh link profile",
			"external_user_id", identity.ExternalUserID, "error", err)
	}

	ticket, err := s.mintTicket(core.PlaceholderEmail(identity.ExternalUserID))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "resolved existing external identity",
		"external_user_id", identity.ExternalUserID,
		"account_id", link.InternalUserID)

	return &ResolveResult{
		Status:    StatusExisting,
		Profile:   identity,
		AccountID: link.InternalUserID,
		Ticket:    ticket,
	}, nil
}

// RestoreResult reports the outcome of a silent restoration attempt.
// Failure is a result, not an error: the caller falls through to the next
// rung of its decision ladder.
type RestoreResult struct {
	Restored  bool                   `json:"restored"`
	Reason    string                 `json:"reason,omitempty"`
	Profile   *core.ExternalIdentity `json:"externalProfile,omitempty"`
	AccountID string                 `json:"accountId,omitempty"`
	Ticket    string                 `json:"ticket,omitempty"`
}

// RestoreFromExternalID silently restores a session for a previously linked
// external id. An unknown id yields {Restored: false, Reason:
// "restore_failed"} with a nil error.
func (s *BridgeService) RestoreFromExternalID(ctx context.Context, externalID string) (*RestoreResult, error) {
	link, err := s.db.GetLinkByExternalID(externalID)
	if err != nil {
		if errors.Is(err, core.ErrLinkNotFound) {
			s.logger.InfoContext(ctx, "restore failed: external id not linked",
				"external_user_id", externalID)
			return &RestoreResult{Restored: false, Reason: "restore_failed"}, nil
		}
		return nil, fmt.Errorf("failed to look up identity link: %w", err)
	}

	ticket, err := s.mintTicket(core.PlaceholderEmail(externalID))
	if err != nil {
		return nil, err
	}

	return &RestoreResult{
		Restored:  true,
		Profile:   linkProfile(link),
		AccountID: link.InternalUserID,
		Ticket:    ticket,
	}, nil
}

// RegisterInput carries the verified profile being registered.
type RegisterInput struct {
	Profile              core.ExternalIdentity `json:"externalProfile"`
	NotificationsEnabled bool                  `json:"notificationsEnabled"`
}

type RegisterResult struct {
	AccountID string `json:"accountId"`
	Ticket    string `json:"ticket"`
}

// Register creates the internal account and identity link for a new
// external identity, or reuses the existing rows when a retried or
// concurrent registration already created them. An account already claimed
// by a different external identity is rejected with ErrLinkConflict.
func (s *BridgeService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	identity := input.Profile
	if identity.ExternalUserID == "" {
		return nil, fmt.Errorf("%w: empty external user id", core.ErrMalformedProviderResponse)
	}

	email := core.PlaceholderEmail(identity.ExternalUserID)

	// Step 1: A link for this external id means a retried registration.
	// Reuse the rows and just refresh the profile.
	link, err := s.db.GetLinkByExternalID(identity.ExternalUserID)
	if err != nil && !errors.Is(err, core.ErrLinkNotFound) {
		return nil, fmt.Errorf("failed to look up identity link: %w", err)
	}
	if link != nil {
		if err := s.upsertLink(link.InternalUserID, identity, input.NotificationsEnabled); err != nil {
			return nil, err
		}
		ticket, err := s.mintTicket(email)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{AccountID: link.InternalUserID, Ticket: ticket}, nil
	}

	// Step 2: Create the directory account, reusing the row when another
	// request won the race. Create and get do not compose atomically, so
	// exists-then-reuse is the contract here.
	account := &core.InternalAccount{Email: email}
	err = s.db.CreateAccount(account)
	if errors.Is(err, core.ErrAccountExists) {
		account, err = s.db.GetAccountByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch existing account: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Step 3: Reject hijack. An account linked to a different external id
	// must never be silently re-pointed.
	existing, err := s.db.GetLinkByInternalID(account.ID)
	if err != nil && !errors.Is(err, core.ErrLinkNotFound) {
		return nil, fmt.Errorf("failed to check existing link: %w", err)
	}
	if existing != nil && existing.ExternalUserID != identity.ExternalUserID {
		s.logger.WarnContext(ctx, "rejected cross-identity link attempt",
			"account_id", account.ID,
			"external_user_id", identity.ExternalUserID)
		return nil, core.ErrLinkConflict
	}

	// Step 4: Write the link. Keyed by external id, so a concurrent
	// registration of the same identity collapses into one row.
	if err := s.upsertLink(account.ID, identity, input.NotificationsEnabled); err != nil {
		return nil, err
	}

	ticket, err := s.mintTicket(email)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registered external identity",
		"external_user_id", identity.ExternalUserID,
		"account_id", account.ID)

	return &RegisterResult{AccountID: account.ID, Ticket: ticket}, nil
}

func (s *BridgeService) upsertLink(internalID string, identity core.ExternalIdentity, notificationsEnabled bool) error {
	now := time.Now()
	err := s.db.UpsertLink(&core.IdentityLink{
		InternalUserID:       internalID,
		ExternalUserID:       identity.ExternalUserID,
		DisplayName:          identity.DisplayName,
		PictureURL:           identity.PictureURL,
		NotificationsEnabled: notificationsEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert identity link: %w", err)
	}
	return nil
}

// mintTicket persists a hashed single-use ticket and returns the raw value.
func (s *BridgeService) mintTicket(email string) (string, error) {
	pair, err := crypto.NewTokenPair()
	if err != nil {
		return "", fmt.Errorf("failed to generate ticket: %w", err)
	}

	now := time.Now()
	err = s.db.CreateTicket(&core.AuthTicket{
		Hash:      pair.Hash,
		Email:     email,
		ExpiresAt: now.Add(s.config.TicketTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist ticket: %w", err)
	}

	return pair.Value, nil
}

type RedeemResult struct {
	Token string            `json:"token"`
	Data  *core.SessionData `json:"data"`
}

// RedeemTicket converts a raw ticket into a live session. The ticket row is
// consumed by the read, so a second redemption of the same value fails with
// ErrTicketNotFound.
func (s *BridgeService) RedeemTicket(ctx context.Context, ticket, ipAddress, userAgent string) (*RedeemResult, error) {
	t, err := s.db.RedeemTicketByHash(crypto.HashToken(ticket))
	if err != nil {
		return nil, err
	}

	if time.Now().After(t.ExpiresAt) {
		return nil, core.ErrTicketExpired
	}

	account, err := s.db.GetAccountByEmail(t.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ticket account: %w", err)
	}

	result, err := s.sessionManager.Create(account.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	data, err := s.sessionData(account, result.Session)
	if err != nil {
		return nil, err
	}

	return &RedeemResult{Token: result.Token, Data: data}, nil
}

// GetSession returns the authoritative session data for a bearer token.
func (s *BridgeService) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	session, err := s.sessionManager.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.db.GetAccountByID(session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return s.sessionData(account, session)
}

func (s *BridgeService) sessionData(account *core.InternalAccount, session *core.Session) (*core.SessionData, error) {
	link, err := s.db.GetLinkByInternalID(account.ID)
	if err != nil && !errors.Is(err, core.ErrLinkNotFound) {
		return nil, fmt.Errorf("failed to get identity link: %w", err)
	}

	return &core.SessionData{
		Account: account,
		Link:    link,
		Session: session,
	}, nil
}

// ResolveSession implements core.SessionResolver for route middleware.
func (s *BridgeService) ResolveSession(ctx context.Context, token string) (*core.SessionData, error) {
	return s.GetSession(ctx, token)
}

// SignOut invalidates the session behind the token.
func (s *BridgeService) SignOut(ctx context.Context, token string) error {
	if err := s.sessionManager.Destroy(token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired tickets and sessions. Intended for a
// scheduled job.
func (s *BridgeService) PurgeExpired(ctx context.Context) (int, error) {
	tickets, err := s.db.DeleteExpiredTickets()
	if err != nil {
		return 0, fmt.Errorf("failed to purge tickets: %w", err)
	}

	sessions, err := s.sessionManager.DeleteExpired()
	if err != nil {
		return tickets, fmt.Errorf("failed to purge sessions: %w", err)
	}

	if tickets+sessions > 0 {
		s.logger.InfoContext(ctx, "purged expired rows",
			"tickets", tickets, "sessions", sessions)
	}

	return tickets + sessions, nil
}

func linkProfile(link *core.IdentityLink) *core.ExternalIdentity {
	return &core.ExternalIdentity{
		ExternalUserID: link.ExternalUserID,
		DisplayName:    link.DisplayName,
		PictureURL:     link.PictureURL,
	}
}
