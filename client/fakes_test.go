package client

import (
	"context"
	"sync"

	"github.com/kairan-app/kairan/core"
)

// fakeBridge is an in-memory Bridge with injectable outcomes and a call
// log. sessionGate, when set, blocks GetSession until the gate closes or
// the context expires.
type fakeBridge struct {
	mu    sync.Mutex
	calls []string

	authURL         *AuthURLOutcome
	callbackOutcome *ResolveOutcome
	callbackErr     error
	liffOutcome     *ResolveOutcome
	liffErr         error
	restoreOutcome  *RestoreOutcome
	restoreErr      error
	registerOutcome *RegisterOutcome
	registerErr     error
	redeemOutcome   *RedeemOutcome
	redeemErr       error
	sessionData     *core.SessionData
	sessionErr      error
	sessionGate     chan struct{}
	signOutErr      error
}

var _ Bridge = (*fakeBridge)(nil)

func (f *fakeBridge) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBridge) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.calls {
		if c == call {
			count++
		}
	}
	return count
}

func (f *fakeBridge) GetAuthURL(ctx context.Context) (*AuthURLOutcome, error) {
	f.record("get_auth_url")
	return f.authURL, nil
}

func (f *fakeBridge) Callback(ctx context.Context, code string) (*ResolveOutcome, error) {
	f.record("callback")
	return f.callbackOutcome, f.callbackErr
}

func (f *fakeBridge) LiffLogin(ctx context.Context, accessToken, externalID string) (*ResolveOutcome, error) {
	f.record("liff_login")
	return f.liffOutcome, f.liffErr
}

func (f *fakeBridge) AutoRestore(ctx context.Context, externalID string) (*RestoreOutcome, error) {
	f.record("auto_restore")
	return f.restoreOutcome, f.restoreErr
}

func (f *fakeBridge) Register(ctx context.Context, profile core.ExternalIdentity, notificationsEnabled bool) (*RegisterOutcome, error) {
	f.record("register")
	return f.registerOutcome, f.registerErr
}

func (f *fakeBridge) Redeem(ctx context.Context, ticket string) (*RedeemOutcome, error) {
	f.record("redeem")
	return f.redeemOutcome, f.redeemErr
}

func (f *fakeBridge) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	f.record("get_session")
	if f.sessionGate != nil {
		select {
		case <-f.sessionGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.sessionData, f.sessionErr
}

func (f *fakeBridge) SignOut(ctx context.Context, token string) error {
	f.record("sign_out")
	return f.signOutErr
}

// fakeEmbedded is an in-memory EmbeddedLogin with probe values set by the
// test.
type fakeEmbedded struct {
	initErr  error
	inClient bool
	loggedIn bool
	token    string
	profile  *core.ExternalIdentity

	initCalls    int
	triggerCalls int
	triggerErr   error
}

var _ EmbeddedLogin = (*fakeEmbedded)(nil)

func (f *fakeEmbedded) Init(ctx context.Context) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeEmbedded) InClient() bool { return f.inClient }
func (f *fakeEmbedded) LoggedIn() bool { return f.loggedIn }

func (f *fakeEmbedded) TriggerLogin() error {
	f.triggerCalls++
	return f.triggerErr
}

func (f *fakeEmbedded) AccessToken() (string, error) {
	return f.token, nil
}

func (f *fakeEmbedded) Profile(ctx context.Context) (*core.ExternalIdentity, error) {
	return f.profile, nil
}
