package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kairan-app/kairan/core"
)

// Wire action names accepted by the single bridge endpoint.
const (
	ActionGetAuthURL  = "get_auth_url"
	ActionCallback    = "callback"
	ActionLiffLogin   = "liff_login"
	ActionAutoRestore = "auto_restore"
	ActionRegister    = "register"
	ActionRedeem      = "redeem"
	ActionGetSession  = "get_session"
	ActionSignOut     = "sign_out"
)

// ActionFunc handles one named action with its raw JSON payload.
type ActionFunc func(ctx context.Context, payload []byte) (any, error)

// ActionDispatcher routes wire actions to bridge operations. It starts with
// all base actions registered and supports registration of additional
// actions with conflict detection.
type ActionDispatcher struct {
	bridge  *BridgeService
	actions map[string]ActionFunc
}

var _ core.ActionHandler = (*ActionDispatcher)(nil)

// NewActionDispatcher creates a dispatcher with all base bridge actions
// pre-registered.
func NewActionDispatcher(bridge *BridgeService) *ActionDispatcher {
	d := &ActionDispatcher{
		bridge:  bridge,
		actions: make(map[string]ActionFunc),
	}

	d.actions[ActionGetAuthURL] = d.getAuthURL
	d.actions[ActionCallback] = d.callback
	d.actions[ActionLiffLogin] = d.liffLogin
	d.actions[ActionAutoRestore] = d.autoRestore
	d.actions[ActionRegister] = d.register
	d.actions[ActionRedeem] = d.redeem
	d.actions[ActionGetSession] = d.getSession
	d.actions[ActionSignOut] = d.signOut

	return d
}

// Register adds an extension action. Returns an error when the name is
// already taken, base actions included.
func (d *ActionDispatcher) Register(name string, fn ActionFunc) error {
	if _, exists := d.actions[name]; exists {
		return fmt.Errorf("action conflict: %s already registered", name)
	}
	d.actions[name] = fn
	return nil
}

// Actions returns the names of all registered actions.
func (d *ActionDispatcher) Actions() []string {
	names := make([]string, 0, len(d.actions))
	for name := range d.actions {
		names = append(names, name)
	}
	return names
}

// Handle dispatches one action by name.
func (d *ActionDispatcher) Handle(ctx context.Context, name string, payload []byte) (any, error) {
	fn, ok := d.actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", name)
	}
	return fn(ctx, payload)
}

func decodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid action payload: %w", err)
	}
	return nil
}

type getAuthURLPayload struct {
	Provider    string `json:"provider,omitempty"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

func (d *ActionDispatcher) getAuthURL(ctx context.Context, payload []byte) (any, error) {
	var p getAuthURLPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	return d.bridge.IssueAuthorizeURL(ctx, p.Provider, p.RedirectURI)
}

type callbackPayload struct {
	Provider    string `json:"provider,omitempty"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

func (d *ActionDispatcher) callback(ctx context.Context, payload []byte) (any, error) {
	var p callbackPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if p.Code == "" {
		return nil, core.ErrMissingRedirectParams
	}
	return d.bridge.ExchangeCode(ctx, p.Provider, p.Code, p.RedirectURI)
}

type liffLoginPayload struct {
	Provider       string `json:"provider,omitempty"`
	AccessToken    string `json:"accessToken"`
	ExternalUserID string `json:"externalUserId,omitempty"`
}

func (d *ActionDispatcher) liffLogin(ctx context.Context, payload []byte) (any, error) {
	var p liffLoginPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if p.AccessToken == "" {
		return nil, core.ErrMissingRedirectParams
	}
	return d.bridge.ExchangeEmbeddedToken(ctx, p.Provider, p.AccessToken, p.ExternalUserID)
}

type autoRestorePayload struct {
	ExternalUserID string `json:"externalUserId"`
}

func (d *ActionDispatcher) autoRestore(ctx context.Context, payload []byte) (any, error) {
	var p autoRestorePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if p.ExternalUserID == "" {
		return &RestoreResult{Restored: false, Reason: "restore_failed"}, nil
	}
	return d.bridge.RestoreFromExternalID(ctx, p.ExternalUserID)
}

func (d *ActionDispatcher) register(ctx context.Context, payload []byte) (any, error) {
	var input RegisterInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	return d.bridge.Register(ctx, input)
}

type redeemPayload struct {
	Ticket string `json:"ticket"`
}

func (d *ActionDispatcher) redeem(ctx context.Context, payload []byte) (any, error) {
	var p redeemPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if p.Ticket == "" {
		return nil, core.ErrTicketNotFound
	}

	meta := core.RequestMetaFrom(ctx)
	return d.bridge.RedeemTicket(ctx, p.Ticket, meta.IPAddress, meta.UserAgent)
}

type tokenPayload struct {
	Token string `json:"token,omitempty"`
}

// bearerToken prefers the transport token over a payload field.
func bearerToken(ctx context.Context, payload []byte) string {
	if meta := core.RequestMetaFrom(ctx); meta.Token != "" {
		return meta.Token
	}
	var p tokenPayload
	_ = json.Unmarshal(payload, &p)
	return p.Token
}

func (d *ActionDispatcher) getSession(ctx context.Context, payload []byte) (any, error) {
	return d.bridge.GetSession(ctx, bearerToken(ctx, payload))
}

type signOutResult struct {
	Success bool `json:"success"`
}

func (d *ActionDispatcher) signOut(ctx context.Context, payload []byte) (any, error) {
	if err := d.bridge.SignOut(ctx, bearerToken(ctx, payload)); err != nil {
		return nil, err
	}
	return signOutResult{Success: true}, nil
}
