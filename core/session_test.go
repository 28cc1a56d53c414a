package core

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // key: token hash
	getErr   error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*Session)}
}

func (f *fakeSessionStore) CreateSession(session *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.TokenHash] = session
	return nil
}

func (f *fakeSessionStore) GetSessionByHash(tokenHash string) (*Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) GetSessionByID(id string) (*Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (f *fakeSessionStore) DeleteSessionByID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, k)
			return nil
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteSessionByHash(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[tokenHash]; !ok {
		return ErrSessionNotFound
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionStore) DeleteAccountSessions(accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.sessions {
		if s.AccountID == accountID {
			delete(f.sessions, k)
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteExpiredSessions() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	now := time.Now()
	for k, s := range f.sessions {
		if now.After(s.ExpiresAt) {
			delete(f.sessions, k)
			n++
		}
	}
	return n, nil
}

func newTestSessionManager(storage SessionStorage, cache SessionCache) *SessionManager {
	return NewSessionManager(SessionConfig{MaxAge: 24 * time.Hour}, storage, cache)
}

// Requirement: Create generates a new session with a raw token.
func TestSessionManagerCreate(t *testing.T) {
	storage := newFakeSessionStore()
	manager := newTestSessionManager(storage, nil)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Session == nil {
		t.Fatal("Session is nil")
	}
	if result.Token == "" {
		t.Fatal("Token is empty")
	}
	if result.Session.AccountID != "acc-1" {
		t.Errorf("Session.AccountID = %q, want %q", result.Session.AccountID, "acc-1")
	}
	if result.Session.TokenHash == result.Token {
		t.Error("stored hash must differ from the raw token")
	}
}

// Requirement: the token hash must never appear in JSON responses.
func TestSessionManagerCreateTokenHashNotExposed(t *testing.T) {
	storage := newFakeSessionStore()
	manager := newTestSessionManager(storage, nil)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	jsonBytes, err := json.Marshal(result.Session)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var sessionMap map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &sessionMap); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if _, exists := sessionMap["tokenHash"]; exists {
		t.Error("TokenHash exposed in JSON")
	}
	for _, field := range []string{"id", "accountId", "ipAddress", "userAgent", "expiresAt", "createdAt", "updatedAt"} {
		if _, exists := sessionMap[field]; !exists {
			t.Errorf("required field %s missing from JSON", field)
		}
	}
}

// Requirement: Verify retrieves and validates a session by token.
func TestSessionManagerVerify(t *testing.T) {
	tests := []struct {
		name         string
		setupSession func(*fakeSessionStore) string // returns token to verify
		wantErr      bool
	}{
		{
			name: "returns session for valid token",
			setupSession: func(storage *fakeSessionStore) string {
				manager := newTestSessionManager(storage, nil)
				result, _ := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
				return result.Token
			},
		},
		{
			name: "returns error for empty token",
			setupSession: func(storage *fakeSessionStore) string {
				return ""
			},
			wantErr: true,
		},
		{
			name: "returns error for unknown token",
			setupSession: func(storage *fakeSessionStore) string {
				manager := newTestSessionManager(storage, nil)
				manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
				return "invalid_token_xyz"
			},
			wantErr: true,
		},
		{
			name: "returns error for expired session",
			setupSession: func(storage *fakeSessionStore) string {
				manager := NewSessionManager(SessionConfig{MaxAge: -1 * time.Hour}, storage, nil)
				result, _ := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
				return result.Token
			},
			wantErr: true,
		},
		{
			name: "returns error when session deleted from storage",
			setupSession: func(storage *fakeSessionStore) string {
				manager := newTestSessionManager(storage, nil)
				result, _ := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
				storage.DeleteSessionByID(result.Session.ID)
				return result.Token
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			storage := newFakeSessionStore()
			token := test.setupSession(storage)
			manager := newTestSessionManager(storage, nil)

			session, err := manager.Verify(token)
			if (err != nil) != test.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, test.wantErr)
			}
			if !test.wantErr && session.AccountID != "acc-1" {
				t.Errorf("Session.AccountID = %q, want %q", session.AccountID, "acc-1")
			}
		})
	}
}

// Requirement: a cache hit must not serve a session past its expiry.
func TestSessionManagerVerifyCachedExpiredSession(t *testing.T) {
	storage := newFakeSessionStore()
	cache := NewInMemorySessionCache(CacheConfig{TTL: time.Hour, MaxSize: 10})
	manager := NewSessionManager(SessionConfig{MaxAge: 30 * time.Millisecond}, storage, cache)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := manager.Verify(result.Token); err == nil {
		t.Fatal("expected expired session to fail verification despite cache hit")
	}
}

// Requirement: with a cache, Verify survives a storage outage.
func TestSessionManagerVerifyServedFromCache(t *testing.T) {
	storage := newFakeSessionStore()
	cache := NewInMemorySessionCache(CacheConfig{TTL: time.Hour, MaxSize: 10})
	manager := NewSessionManager(DefaultSessionConfig(), storage, cache)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	storage.getErr = ErrSessionNotFound

	if _, err := manager.Verify(result.Token); err != nil {
		t.Fatalf("expected cache to serve the session, got %v", err)
	}
}

func TestSessionManagerDestroy(t *testing.T) {
	storage := newFakeSessionStore()
	cache := NewInMemorySessionCache(CacheConfig{TTL: time.Hour, MaxSize: 10})
	manager := NewSessionManager(DefaultSessionConfig(), storage, cache)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := manager.Destroy(result.Token); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := manager.Verify(result.Token); err == nil {
		t.Error("Verify() should fail after Destroy()")
	}
	if err := manager.Destroy("invalid_token_xyz"); err == nil {
		t.Error("Destroy() should fail for an unknown token")
	}
}

func TestSessionManagerDestroyBySessionID(t *testing.T) {
	storage := newFakeSessionStore()
	cache := NewInMemorySessionCache(CacheConfig{TTL: time.Hour, MaxSize: 10})
	manager := NewSessionManager(DefaultSessionConfig(), storage, cache)

	result, err := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := manager.DestroyBySessionID(result.Session.ID); err != nil {
		t.Fatalf("DestroyBySessionID() error = %v", err)
	}
	if _, err := manager.Verify(result.Token); err == nil {
		t.Error("Verify() should fail after DestroyBySessionID()")
	}
}

func TestSessionManagerDestroyAllAccountSessions(t *testing.T) {
	storage := newFakeSessionStore()
	manager := newTestSessionManager(storage, nil)

	first, _ := manager.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	second, _ := manager.Create("acc-1", "10.0.0.1", "curl/8")
	other, _ := manager.Create("acc-2", "10.0.0.2", "curl/8")

	if err := manager.DestroyAllAccountSessions("acc-1"); err != nil {
		t.Fatalf("DestroyAllAccountSessions() error = %v", err)
	}

	if _, err := manager.Verify(first.Token); err == nil {
		t.Error("first session should be gone")
	}
	if _, err := manager.Verify(second.Token); err == nil {
		t.Error("second session should be gone")
	}
	if _, err := manager.Verify(other.Token); err != nil {
		t.Errorf("other account's session should survive, got %v", err)
	}
}

func TestSessionManagerDeleteExpired(t *testing.T) {
	storage := newFakeSessionStore()

	expired := NewSessionManager(SessionConfig{MaxAge: -1 * time.Hour}, storage, nil)
	expired.Create("acc-1", "192.168.1.1", "Mozilla/5.0")
	expired.Create("acc-1", "192.168.1.1", "Mozilla/5.0")

	live := newTestSessionManager(storage, nil)
	live.Create("acc-1", "192.168.1.1", "Mozilla/5.0")

	n, err := live.DeleteExpired()
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", n)
	}
}
