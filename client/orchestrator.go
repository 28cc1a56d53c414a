// Package client implements the auth orchestrator that decides, on every
// page load, how a user becomes authenticated: by resolving a login
// redirect, revalidating a cached session, cycling through the in-app SDK,
// or silently restoring from a previously linked identity.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/pkg/hints"
)

// Timeouts bounds each waiting phase independently. A stage that exceeds
// its budget forces Unauthenticated with a populated error instead of
// hanging the page.
type Timeouts struct {
	Redirect      time.Duration
	Revalidate    time.Duration
	Restore       time.Duration
	EmbeddedLogin time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Redirect:      15 * time.Second,
		Revalidate:    10 * time.Second,
		Restore:       10 * time.Second,
		EmbeddedLogin: 15 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	defaults := DefaultTimeouts()
	if t.Redirect <= 0 {
		t.Redirect = defaults.Redirect
	}
	if t.Revalidate <= 0 {
		t.Revalidate = defaults.Revalidate
	}
	if t.Restore <= 0 {
		t.Restore = defaults.Restore
	}
	if t.EmbeddedLogin <= 0 {
		t.EmbeddedLogin = defaults.EmbeddedLogin
	}
	return t
}

// State is the orchestrator's externally visible snapshot.
//
// CachedProfile is a paint hint adopted before any network confirmation;
// Session is only ever set from an authoritative bridge response.
// PendingProfile is set when the identity is verified but unregistered,
// waiting for CompleteRegistration.
type State struct {
	Phase          Phase
	Session        *core.SessionData
	CachedProfile  *core.ExternalIdentity
	PendingProfile *core.ExternalIdentity
	Err            error
}

type Config struct {
	Bridge   Bridge
	Hints    core.HintStore
	Embedded EmbeddedLogin // optional; nil disables the embedded rung
	Timeouts Timeouts
	Logger   *slog.Logger
}

// Orchestrator drives the login decision ladder. One instance per page
// load: New, then Evaluate and signal handlers, then Close.
//
// All state transitions are serialized under one mutex. Every evaluation
// and signal bumps an attempt counter; results arriving for a superseded
// attempt are discarded instead of clobbering newer state.
type Orchestrator struct {
	bridge   Bridge
	hints    core.HintStore
	embedded EmbeddedLogin
	timeouts Timeouts
	logger   *slog.Logger

	attempt atomic.Uint64

	mu      sync.Mutex
	state   State
	token   string
	restore restoreStrategy
	timers  []*time.Timer
	closed  bool
}

func New(config Config) (*Orchestrator, error) {
	if config.Bridge == nil {
		return nil, errors.New("orchestrator requires a bridge")
	}
	if config.Hints == nil {
		config.Hints = hints.NewMemory()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Orchestrator{
		bridge:   config.Bridge,
		hints:    config.Hints,
		embedded: config.Embedded,
		timeouts: config.Timeouts.withDefaults(),
		logger:   config.Logger,
		state:    State{Phase: Booting},
	}, nil
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Token returns the current session token, empty when unauthenticated.
func (o *Orchestrator) Token() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token
}

// Close invalidates in-flight work and disposes pending timers. The
// orchestrator must not be used afterwards.
func (o *Orchestrator) Close() {
	o.attempt.Add(1)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for _, timer := range o.timers {
		timer.Stop()
	}
	o.timers = nil
}

// Evaluate runs the decision ladder for the given page URL and returns the
// settled state. Rungs are tried in a fixed short-circuit order: login
// redirect, cached-profile paint plus session revalidation, embedded SDK
// cycle, silent restoration, unauthenticated.
func (o *Orchestrator) Evaluate(ctx context.Context, pageURL string) State {
	attempt := o.beginAttempt()

	if redirect, ok := ParseRedirect(pageURL); ok {
		return o.resolveRedirect(ctx, attempt, redirect)
	}

	// Paint from the cached profile while confirmation is in flight. Never
	// regresses a newer state: it only fills CachedProfile.
	if profile := readProfileHint(o.hints, HintProfile); profile != nil {
		o.mutate(attempt, func(s *State) { s.CachedProfile = profile })
	}

	if token, ok := o.hints.Get(HintSessionToken); ok && token != "" {
		if state, settled := o.revalidate(ctx, attempt, token); settled {
			return state
		}
	}

	if o.embedded != nil {
		if state, settled := o.embeddedCycle(ctx, attempt); settled {
			return state
		}
	}

	if state, settled := o.restore.run(ctx, o, attempt); settled {
		return state
	}

	// A verified-but-unregistered identity from an earlier evaluation still
	// needs the registration hand-off surfaced.
	if pending := readProfileHint(o.hints, HintPendingRegistration); pending != nil {
		o.mutate(attempt, func(s *State) { s.PendingProfile = pending })
	}

	return o.settleUnauthenticated(attempt, nil)
}

// OnSessionChanged handles an external notice that the session may have
// changed (another tab logged in or out). It re-runs the authoritative
// session query.
func (o *Orchestrator) OnSessionChanged(ctx context.Context) State {
	attempt := o.beginAttempt()

	token, ok := o.hints.Get(HintSessionToken)
	if !ok || token == "" {
		o.clearSessionHints()
		return o.settleUnauthenticated(attempt, nil)
	}

	if state, settled := o.revalidate(ctx, attempt, token); settled {
		return state
	}
	return o.settleUnauthenticated(attempt, nil)
}

// OnEmbeddedLoginChanged handles the SDK reporting a login state change,
// typically after the page returned from TriggerLogin navigation.
func (o *Orchestrator) OnEmbeddedLoginChanged(ctx context.Context) State {
	attempt := o.beginAttempt()

	if o.embedded == nil {
		return o.State()
	}
	if state, settled := o.embeddedCycle(ctx, attempt); settled {
		return state
	}
	return o.settleUnauthenticated(attempt, nil)
}

// CompleteRegistration finishes the first-login hand-off: registers the
// verified profile with the bridge, redeems the returned ticket and settles
// Authenticated. A conflict (core.ErrLinkConflict) is returned to the
// caller untouched.
func (o *Orchestrator) CompleteRegistration(ctx context.Context, profile core.ExternalIdentity, notificationsEnabled bool) (State, error) {
	attempt := o.beginAttempt()

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Redirect)
	defer cancel()

	registered, err := o.bridge.Register(callCtx, profile, notificationsEnabled)
	if err != nil {
		return o.settleUnauthenticated(attempt, err), err
	}

	o.hints.Delete(HintPendingRegistration)
	o.mutate(attempt, func(s *State) { s.PendingProfile = nil })

	state, _ := o.redeemAndAdopt(callCtx, attempt, registered.Ticket)
	return state, state.Err
}

// Logout signs out at the bridge, clears every hint and settles
// Unauthenticated. A failed remote sign-out still clears local state.
func (o *Orchestrator) Logout(ctx context.Context) State {
	attempt := o.beginAttempt()

	token := o.Token()
	if token == "" {
		token, _ = o.hints.Get(HintSessionToken)
	}
	if token != "" {
		if err := o.bridge.SignOut(ctx, token); err != nil {
			o.logger.Warn("remote sign-out failed", "error", err)
		}
	}

	o.hints.Clear()
	return o.settleUnauthenticated(attempt, nil)
}

// resolveRedirect handles the ResolvingRedirect rung for all three marker
// shapes.
func (o *Orchestrator) resolveRedirect(ctx context.Context, attempt uint64, redirect *Redirect) State {
	o.setPhase(attempt, ResolvingRedirect)

	if redirect.Failed() {
		return o.settleUnauthenticated(attempt,
			fmt.Errorf("provider reported login failure: %s", redirect.ErrorDescription))
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Redirect)
	defer cancel()

	var outcome *ResolveOutcome
	var err error

	switch {
	case redirect.Code != "":
		o.checkAuthorizeState(redirect.State)
		outcome, err = o.bridge.Callback(callCtx, redirect.Code)
	case redirect.AccessToken != "":
		// Implicit fragment shape: the token is exchanged like an
		// SDK-issued one.
		outcome, err = o.bridge.LiffLogin(callCtx, redirect.AccessToken, "")
	default:
		return o.settleUnauthenticated(attempt, core.ErrMissingRedirectParams)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("redirect resolution timed out, forcing unauthenticated")
		}
		return o.settleUnauthenticated(attempt, err)
	}

	state, _ := o.adoptResolve(callCtx, attempt, outcome)
	return state
}

// checkAuthorizeState compares the redirect state with the stored hint.
// A mismatch is logged and the flow continues: the hint store is best
// effort, so absence or staleness must not fail a legitimate login. The
// hint is consumed either way.
func (o *Orchestrator) checkAuthorizeState(got string) {
	expected, ok := o.hints.Get(HintAuthorizeState)
	o.hints.Delete(HintAuthorizeState)

	if ok && expected != "" && expected != got {
		o.logger.Warn("anti-forgery state mismatch", "error", core.ErrStateMismatch)
	}
}

// revalidate handles the RestoringFromCache rung: query the authoritative
// session behind the cached token. Returns settled=false when the session
// is simply gone and the ladder should continue.
func (o *Orchestrator) revalidate(ctx context.Context, attempt uint64, token string) (State, bool) {
	o.setPhase(attempt, RestoringFromCache)

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Revalidate)
	defer cancel()

	data, err := o.bridge.GetSession(callCtx, token)
	if err == nil {
		return o.settleAuthenticated(attempt, token, data), true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		o.logger.Warn("session revalidation timed out, forcing unauthenticated")
		return o.settleUnauthenticated(attempt, err), true
	}
	if errors.Is(err, core.ErrDirectoryUnavailable) {
		return o.settleUnauthenticated(attempt, err), true
	}

	// The cached session is dead. Drop the session hints and the painted
	// profile so stale data does not linger if no later rung
	// authenticates; the linked id survives so the restoration rung can
	// still try.
	o.clearSessionHints()
	o.hints.Delete(HintProfile)
	o.mutate(attempt, func(s *State) { s.CachedProfile = nil })
	o.logger.Info("cached session no longer valid", "error", err)
	return State{}, false
}

// embeddedCycle handles the AwaitingEmbeddedLogin rung. Returns
// settled=false when the page is not inside the provider's app, or the SDK
// failed to initialize, so the ladder continues.
func (o *Orchestrator) embeddedCycle(ctx context.Context, attempt uint64) (State, bool) {
	o.setPhase(attempt, AwaitingEmbeddedLogin)

	initCtx, cancel := context.WithTimeout(ctx, o.timeouts.EmbeddedLogin)
	defer cancel()

	if err := o.embedded.Init(initCtx); err != nil {
		o.logger.Warn("embedded sdk init failed", "error", err)
		return State{}, false
	}
	if !o.embedded.InClient() {
		return State{}, false
	}

	if !o.embedded.LoggedIn() {
		// The SDK owns the rest: TriggerLogin navigates the page away. A
		// timer force-settles this attempt in case the navigation never
		// happens.
		if err := o.embedded.TriggerLogin(); err != nil {
			return o.settleUnauthenticated(attempt, err), true
		}
		o.scheduleForcedSettle(attempt, o.timeouts.EmbeddedLogin, "embedded login")
		return o.State(), true
	}

	accessToken, err := o.embedded.AccessToken()
	if err != nil {
		return o.settleUnauthenticated(attempt, err), true
	}

	claimed := ""
	if profile, err := o.embedded.Profile(initCtx); err == nil && profile != nil {
		claimed = profile.ExternalUserID
	}

	outcome, err := o.bridge.LiffLogin(initCtx, accessToken, claimed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("embedded token exchange timed out, forcing unauthenticated")
		}
		return o.settleUnauthenticated(attempt, err), true
	}

	return o.adoptResolve(initCtx, attempt, outcome)
}

// adoptResolve turns a bridge resolution into a settled state: redeem and
// authenticate for a known identity, or park a new identity behind the
// registration hand-off.
func (o *Orchestrator) adoptResolve(ctx context.Context, attempt uint64, outcome *ResolveOutcome) (State, bool) {
	if outcome.NewIdentity() {
		writeProfileHint(o.hints, HintPendingRegistration, outcome.Profile)
		o.mutate(attempt, func(s *State) { s.PendingProfile = outcome.Profile })
		return o.settleUnauthenticated(attempt, nil), true
	}
	return o.redeemAndAdopt(ctx, attempt, outcome.Ticket)
}

// redeemAndAdopt converts a single-use ticket into a live session and
// settles Authenticated.
func (o *Orchestrator) redeemAndAdopt(ctx context.Context, attempt uint64, ticket string) (State, bool) {
	redeemed, err := o.bridge.Redeem(ctx, ticket)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("ticket redemption timed out, forcing unauthenticated")
		}
		return o.settleUnauthenticated(attempt, err), true
	}
	return o.settleAuthenticated(attempt, redeemed.Token, redeemed.Data), true
}

func (o *Orchestrator) settleAuthenticated(attempt uint64, token string, data *core.SessionData) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(attempt) {
		// A superseded attempt must leave no trace: writing hints here
		// would resurrect a session the user already navigated away
		// from or logged out of.
		return o.state
	}
	o.persistSessionHints(token, data)
	o.token = token
	o.state.Phase = Authenticated
	o.state.Session = data
	o.state.PendingProfile = nil
	o.state.Err = nil
	return o.state
}

func (o *Orchestrator) settleUnauthenticated(attempt uint64, err error) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(attempt) {
		return o.state
	}
	o.token = ""
	o.state.Phase = Unauthenticated
	o.state.Session = nil
	o.state.Err = err
	return o.state
}

// scheduleForcedSettle arms a timer that forces Unauthenticated if the
// attempt is still current when it fires.
func (o *Orchestrator) scheduleForcedSettle(attempt uint64, after time.Duration, stage string) {
	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		defer o.removeTimer(timer)
		if o.attempt.Load() != attempt {
			return
		}
		o.logger.Warn("stage timed out, forcing unauthenticated", "stage", stage)
		o.settleUnauthenticated(attempt, fmt.Errorf("%s timed out", stage))
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		timer.Stop()
		return
	}
	o.timers = append(o.timers, timer)
}

// removeTimer drops a fired timer so the slice stays bounded on pages that
// live through many attempts.
func (o *Orchestrator) removeTimer(t *time.Timer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, existing := range o.timers {
		if existing == t {
			o.timers = append(o.timers[:i], o.timers[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) beginAttempt() uint64 {
	return o.attempt.Add(1)
}

// stale reports whether the attempt has been superseded. Callers hold o.mu.
func (o *Orchestrator) stale(attempt uint64) bool {
	return o.closed || o.attempt.Load() != attempt
}

func (o *Orchestrator) setPhase(attempt uint64, phase Phase) {
	o.mutate(attempt, func(s *State) { s.Phase = phase })
}

// mutate applies fn to the state unless the attempt is stale.
func (o *Orchestrator) mutate(attempt uint64, fn func(*State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(attempt) {
		return
	}
	fn(&o.state)
}

func (o *Orchestrator) persistSessionHints(token string, data *core.SessionData) {
	o.hints.Set(HintSessionToken, token)
	if data == nil {
		return
	}
	if data.Account != nil {
		o.hints.Set(HintAccountID, data.Account.ID)
	}
	if data.Link != nil {
		o.hints.Set(HintLinkedExternalID, data.Link.ExternalUserID)
		writeProfileHint(o.hints, HintProfile, &core.ExternalIdentity{
			ExternalUserID: data.Link.ExternalUserID,
			DisplayName:    data.Link.DisplayName,
			PictureURL:     data.Link.PictureURL,
		})
	}
}

func (o *Orchestrator) clearSessionHints() {
	o.hints.Delete(HintSessionToken)
	o.hints.Delete(HintAccountID)
}
