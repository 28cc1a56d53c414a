package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/provider"
)

// FakeStorage is a test-only fake implementing core.StorageAdapter.
// It stores rows in maps and exposes error fields for behavior injection.
type FakeStorage struct {
	mu       sync.RWMutex
	accounts map[string]*core.InternalAccount // by id
	links    map[string]*core.IdentityLink    // by external id
	tickets  map[string]*core.AuthTicket      // by hash
	sessions map[string]*core.Session         // by token hash
	nextID   int

	createAccountErr error
	getLinkErr       error
	upsertLinkErr    error
	createTicketErr  error

	upsertLinkCalls int
}

var _ core.StorageAdapter = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		accounts: make(map[string]*core.InternalAccount),
		links:    make(map[string]*core.IdentityLink),
		tickets:  make(map[string]*core.AuthTicket),
		sessions: make(map[string]*core.Session),
	}
}

func (f *FakeStorage) CreateAccount(a *core.InternalAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createAccountErr != nil {
		return f.createAccountErr
	}

	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return core.ErrAccountExists
		}
	}

	if a.ID == "" {
		f.nextID++
		a.ID = fmt.Sprintf("acc-%d", f.nextID)
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	f.accounts[a.ID] = a
	return nil
}

func (f *FakeStorage) GetAccountByID(id string) (*core.InternalAccount, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, core.ErrAccountNotFound
}

func (f *FakeStorage) GetAccountByEmail(email string) (*core.InternalAccount, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, core.ErrAccountNotFound
}

func (f *FakeStorage) UpdateAccountMetadata(id string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return core.ErrAccountNotFound
	}
	a.Metadata = metadata
	a.UpdatedAt = time.Now()
	return nil
}

func (f *FakeStorage) CreateTicket(t *core.AuthTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTicketErr != nil {
		return f.createTicketErr
	}
	f.tickets[t.Hash] = t
	return nil
}

func (f *FakeStorage) RedeemTicketByHash(hash string) (*core.AuthTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[hash]
	if !ok {
		return nil, core.ErrTicketNotFound
	}
	delete(f.tickets, hash)

	if time.Now().After(t.ExpiresAt) {
		return nil, core.ErrTicketExpired
	}
	return t, nil
}

func (f *FakeStorage) DeleteExpiredTickets() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	now := time.Now()
	for hash, t := range f.tickets {
		if now.After(t.ExpiresAt) {
			delete(f.tickets, hash)
			count++
		}
	}
	return count, nil
}

func (f *FakeStorage) GetLinkByExternalID(externalID string) (*core.IdentityLink, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getLinkErr != nil {
		return nil, f.getLinkErr
	}
	if l, ok := f.links[externalID]; ok {
		return l, nil
	}
	return nil, core.ErrLinkNotFound
}

func (f *FakeStorage) GetLinkByInternalID(internalID string) (*core.IdentityLink, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.links {
		if l.InternalUserID == internalID {
			return l, nil
		}
	}
	return nil, core.ErrLinkNotFound
}

func (f *FakeStorage) UpsertLink(l *core.IdentityLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertLinkCalls++
	if f.upsertLinkErr != nil {
		return f.upsertLinkErr
	}

	if existing, ok := f.links[l.ExternalUserID]; ok {
		existing.DisplayName = l.DisplayName
		existing.PictureURL = l.PictureURL
		existing.NotificationsEnabled = l.NotificationsEnabled
		existing.UpdatedAt = time.Now()
		return nil
	}
	f.links[l.ExternalUserID] = l
	return nil
}

func (f *FakeStorage) UpdateLinkProfile(externalID, displayName, pictureURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[externalID]
	if !ok {
		return core.ErrLinkNotFound
	}
	l.DisplayName = displayName
	l.PictureURL = pictureURL
	l.UpdatedAt = time.Now()
	return nil
}

func (f *FakeStorage) DeleteLink(externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.links[externalID]; !ok {
		return core.ErrLinkNotFound
	}
	delete(f.links, externalID)
	return nil
}

func (f *FakeStorage) CreateSession(s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *FakeStorage) GetSessionByHash(tokenHash string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.sessions[tokenHash]; ok {
		return s, nil
	}
	return nil, core.ErrSessionNotFound
}

func (f *FakeStorage) GetSessionByID(id string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (f *FakeStorage) DeleteSessionByID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, hash)
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (f *FakeStorage) DeleteSessionByHash(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *FakeStorage) DeleteAccountSessions(accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.sessions {
		if s.AccountID == accountID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func (f *FakeStorage) DeleteExpiredSessions() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	now := time.Now()
	for hash, s := range f.sessions {
		if now.After(s.ExpiresAt) {
			delete(f.sessions, hash)
			count++
		}
	}
	return count, nil
}

// Test helper methods

func (f *FakeStorage) AccountCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.accounts)
}

func (f *FakeStorage) LinkCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.links)
}

func (f *FakeStorage) TicketCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tickets)
}

// FakeProvider is a test-only fake implementing provider.OAuthProvider.
// The profile it vouches for and each call's failure are injectable.
type FakeProvider struct {
	name    string
	profile *core.ExternalIdentity

	idTokenSubject string
	exchangeErr    error
	profileErr     error
	verifyErr      error

	verifyCalls int
}

var _ provider.OAuthProvider = (*FakeProvider)(nil)

func NewFakeProvider(profile *core.ExternalIdentity) *FakeProvider {
	return &FakeProvider{name: "fake", profile: profile}
}

func (f *FakeProvider) Name() string {
	return f.name
}

func (f *FakeProvider) AuthorizeURL(state, redirectURI string) string {
	return "https://auth.example.com/authorize?state=" + state + "&redirect_uri=" + redirectURI
}

func (f *FakeProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Credentials, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &provider.Credentials{
		AccessToken:    "fake-access-token",
		IDTokenSubject: f.idTokenSubject,
	}, nil
}

func (f *FakeProvider) FetchProfile(ctx context.Context, accessToken string) (*core.ExternalIdentity, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	profile := *f.profile
	return &profile, nil
}

func (f *FakeProvider) VerifyEmbeddedToken(ctx context.Context, accessToken string) error {
	f.verifyCalls++
	return f.verifyErr
}
