package client

import (
	"context"
	"errors"
	"sync"

	"github.com/kairan-app/kairan/core"
)

// EmbeddedLogin is the port over an in-app login SDK. The SDK owns the
// actual login: TriggerLogin navigates the page away entirely, so no state
// survives it and the orchestrator re-evaluates from scratch when the page
// comes back.
type EmbeddedLogin interface {
	// Init prepares the SDK. Called at most once per process; repeat calls
	// return the first result without re-initializing.
	Init(ctx context.Context) error

	// InClient reports whether the page runs inside the provider's app.
	InClient() bool

	// LoggedIn reports whether the SDK already holds a login.
	LoggedIn() bool

	// TriggerLogin starts the SDK login flow, navigating away.
	TriggerLogin() error

	// AccessToken returns the SDK's current access token.
	AccessToken() (string, error)

	// Profile returns the profile the SDK vouches for.
	Profile(ctx context.Context) (*core.ExternalIdentity, error)
}

// SDKBindings are the raw hooks into a concrete SDK surface. Each field maps
// one SDK call; nil probes default to false and nil calls to an error.
type SDKBindings struct {
	Init        func(ctx context.Context) error
	InClient    func() bool
	LoggedIn    func() bool
	Login       func() error
	AccessToken func() (string, error)
	Profile     func(ctx context.Context) (*core.ExternalIdentity, error)
}

// SDKAdapter implements EmbeddedLogin over injected bindings and enforces
// the init-at-most-once contract.
type SDKAdapter struct {
	bindings SDKBindings
	initOnce sync.Once
	initErr  error
}

var _ EmbeddedLogin = (*SDKAdapter)(nil)

func NewSDKAdapter(bindings SDKBindings) *SDKAdapter {
	return &SDKAdapter{bindings: bindings}
}

func (a *SDKAdapter) Init(ctx context.Context) error {
	a.initOnce.Do(func() {
		if a.bindings.Init != nil {
			a.initErr = a.bindings.Init(ctx)
		}
	})
	return a.initErr
}

func (a *SDKAdapter) InClient() bool {
	return a.bindings.InClient != nil && a.bindings.InClient()
}

func (a *SDKAdapter) LoggedIn() bool {
	return a.bindings.LoggedIn != nil && a.bindings.LoggedIn()
}

func (a *SDKAdapter) TriggerLogin() error {
	if a.bindings.Login == nil {
		return errors.New("sdk login binding not configured")
	}
	return a.bindings.Login()
}

func (a *SDKAdapter) AccessToken() (string, error) {
	if a.bindings.AccessToken == nil {
		return "", errors.New("sdk access token binding not configured")
	}
	return a.bindings.AccessToken()
}

func (a *SDKAdapter) Profile(ctx context.Context) (*core.ExternalIdentity, error) {
	if a.bindings.Profile == nil {
		return nil, errors.New("sdk profile binding not configured")
	}
	return a.bindings.Profile(ctx)
}
