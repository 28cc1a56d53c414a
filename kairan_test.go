package kairan

import (
	"context"
	"errors"
	"testing"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/services"
)

type recordingHTTP struct {
	handler  core.ActionHandler
	basePath string
	err      error
}

func (r *recordingHTTP) RegisterRoutes(handler core.ActionHandler, basePath string) error {
	if r.err != nil {
		return r.err
	}
	r.handler = handler
	r.basePath = basePath
	return nil
}

func testProvider() *services.FakeProvider {
	return services.NewFakeProvider(&core.ExternalIdentity{
		ExternalUserID: "U-root-1",
		DisplayName:    "Root Tester",
	})
}

func TestNewValidatesRequiredPieces(t *testing.T) {
	storage := services.NewFakeStorage()
	http := &recordingHTTP{}

	cases := []struct {
		name   string
		config Config
		want   error
	}{
		{
			name:   "missing provider",
			config: Config{Database: storage, HTTP: http},
			want:   ErrProviderRequired,
		},
		{
			name:   "missing database",
			config: Config{Providers: []OAuthProvider{testProvider()}, HTTP: http},
			want:   ErrDBAdapterRequired,
		},
		{
			name:   "missing http adapter",
			config: Config{Providers: []OAuthProvider{testProvider()}, Database: storage},
			want:   ErrHTTPAdapterRequired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.config)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewWiresRoutesAndDefaults(t *testing.T) {
	http := &recordingHTTP{}

	k, err := New(Config{
		Providers:   []OAuthProvider{testProvider()},
		Database:    services.NewFakeStorage(),
		HTTP:        http,
		RedirectURI: "https://app.example.com/callback",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if k.BasePath != "/auth" {
		t.Fatalf("expected default base path /auth, got %q", k.BasePath)
	}
	if http.basePath != "/auth" {
		t.Fatalf("adapter got base path %q", http.basePath)
	}
	if http.handler == nil {
		t.Fatal("adapter never received the action handler")
	}

	// The registered handler must be live, not a placeholder.
	result, err := http.handler.Handle(context.Background(), "get_auth_url", nil)
	if err != nil {
		t.Fatalf("get_auth_url through registered handler failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected an authorize URL result")
	}
}

func TestNewPropagatesRegisterRoutesError(t *testing.T) {
	wantErr := errors.New("route collision")
	http := &recordingHTTP{err: wantErr}

	_, err := New(Config{
		Providers: []OAuthProvider{testProvider()},
		Database:  services.NewFakeStorage(),
		HTTP:      http,
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected RegisterRoutes error to surface, got %v", err)
	}
}

func TestNewEndToEndRegistration(t *testing.T) {
	storage := services.NewFakeStorage()
	http := &recordingHTTP{}

	k, err := New(Config{
		Providers: []OAuthProvider{testProvider()},
		Database:  storage,
		HTTP:      http,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	reg, err := k.Bridge.Register(ctx, services.RegisterInput{
		Profile: core.ExternalIdentity{ExternalUserID: "U-root-1", DisplayName: "Root Tester"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	redeemed, err := k.Bridge.RedeemTicket(ctx, reg.Ticket, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("RedeemTicket failed: %v", err)
	}
	if redeemed.Data.Account.ID != reg.AccountID {
		t.Fatalf("session belongs to %q, expected %q", redeemed.Data.Account.ID, reg.AccountID)
	}

	if _, err := k.SessionManager.Verify(redeemed.Token); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestNewDisableCacheSkipsCaching(t *testing.T) {
	storage := services.NewFakeStorage()

	k, err := New(Config{
		Providers:    []OAuthProvider{testProvider()},
		Database:     storage,
		HTTP:         &recordingHTTP{},
		DisableCache: true,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	reg, err := k.Bridge.Register(ctx, services.RegisterInput{
		Profile: core.ExternalIdentity{ExternalUserID: "U-root-1"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	redeemed, err := k.Bridge.RedeemTicket(ctx, reg.Ticket, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("RedeemTicket failed: %v", err)
	}

	// With no cache every Verify hits storage, so destroying the stored
	// session must immediately invalidate the token.
	if err := k.SessionManager.Destroy(redeemed.Token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := k.SessionManager.Verify(redeemed.Token); err == nil {
		t.Fatal("expected Verify to fail after Destroy with cache disabled")
	}
}
