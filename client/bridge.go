package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kairan-app/kairan/core"
)

// Bridge is the client's view of the identity bridge endpoint. Implemented
// over HTTP by HTTPBridge; tests substitute fakes.
type Bridge interface {
	GetAuthURL(ctx context.Context) (*AuthURLOutcome, error)
	Callback(ctx context.Context, code string) (*ResolveOutcome, error)
	LiffLogin(ctx context.Context, accessToken, externalID string) (*ResolveOutcome, error)
	AutoRestore(ctx context.Context, externalID string) (*RestoreOutcome, error)
	Register(ctx context.Context, profile core.ExternalIdentity, notificationsEnabled bool) (*RegisterOutcome, error)
	Redeem(ctx context.Context, ticket string) (*RedeemOutcome, error)
	GetSession(ctx context.Context, token string) (*core.SessionData, error)
	SignOut(ctx context.Context, token string) error
}

// Outcome types mirror the bridge's wire responses.

type AuthURLOutcome struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type ResolveOutcome struct {
	Status    string                 `json:"status"`
	Profile   *core.ExternalIdentity `json:"externalProfile"`
	AccountID string                 `json:"accountId,omitempty"`
	Ticket    string                 `json:"ticket,omitempty"`
}

// NewIdentity reports whether the bridge saw this identity for the first
// time, meaning registration is required before a session can exist.
func (o *ResolveOutcome) NewIdentity() bool {
	return o.Status == "new"
}

type RestoreOutcome struct {
	Restored  bool                   `json:"restored"`
	Reason    string                 `json:"reason,omitempty"`
	Profile   *core.ExternalIdentity `json:"externalProfile,omitempty"`
	AccountID string                 `json:"accountId,omitempty"`
	Ticket    string                 `json:"ticket,omitempty"`
}

type RegisterOutcome struct {
	AccountID string `json:"accountId"`
	Ticket    string `json:"ticket"`
}

type RedeemOutcome struct {
	Token string            `json:"token"`
	Data  *core.SessionData `json:"data"`
}

// BridgeError is a logical failure reported by the bridge inside a 2xx
// response.
type BridgeError struct {
	Action  string
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge action %s failed: %s", e.Action, e.Message)
}

// wireSentinels are server errors the client reacts to programmatically.
// Anything else stays a BridgeError.
var wireSentinels = []error{
	core.ErrLinkConflict,
	core.ErrTicketNotFound,
	core.ErrTicketExpired,
	core.ErrSessionNotFound,
	core.ErrSessionExpired,
	core.ErrInvalidToken,
	core.ErrStateMismatch,
	core.ErrMissingRedirectParams,
}

func mapWireError(action, message string) error {
	for _, sentinel := range wireSentinels {
		if message == sentinel.Error() {
			return sentinel
		}
	}
	return &BridgeError{Action: action, Message: message}
}

// HTTPBridge talks to the single bridge action endpoint over HTTP.
type HTTPBridge struct {
	endpoint   string
	httpClient *http.Client
}

var _ Bridge = (*HTTPBridge)(nil)

// NewHTTPBridge points the caller at the bridge action endpoint, e.g.
// "https://api.example.com/auth/action". A nil client falls back to
// http.DefaultClient; per-call deadlines come from the context.
func NewHTTPBridge(endpoint string, httpClient *http.Client) *HTTPBridge {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPBridge{endpoint: endpoint, httpClient: httpClient}
}

// call posts one action and decodes the response into out. A non-2xx status
// or an unreachable endpoint is a transport failure; a 2xx body with a
// populated "error" field is a logical failure.
func (b *HTTPBridge) call(ctx context.Context, action string, fields map[string]any, token string, out any) error {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["action"] = action

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrDirectoryUnavailable, action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", core.ErrDirectoryUnavailable, action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", core.ErrDirectoryUnavailable, action, resp.StatusCode)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("invalid %s response: %w", action, err)
	}
	if envelope.Error != "" {
		return mapWireError(action, envelope.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s response: %w", action, err)
	}
	return nil
}

func (b *HTTPBridge) GetAuthURL(ctx context.Context) (*AuthURLOutcome, error) {
	var out AuthURLOutcome
	if err := b.call(ctx, "get_auth_url", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) Callback(ctx context.Context, code string) (*ResolveOutcome, error) {
	var out ResolveOutcome
	err := b.call(ctx, "callback", map[string]any{"code": code}, "", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) LiffLogin(ctx context.Context, accessToken, externalID string) (*ResolveOutcome, error) {
	fields := map[string]any{"accessToken": accessToken}
	if externalID != "" {
		fields["externalUserId"] = externalID
	}
	var out ResolveOutcome
	if err := b.call(ctx, "liff_login", fields, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) AutoRestore(ctx context.Context, externalID string) (*RestoreOutcome, error) {
	var out RestoreOutcome
	err := b.call(ctx, "auto_restore", map[string]any{"externalUserId": externalID}, "", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) Register(ctx context.Context, profile core.ExternalIdentity, notificationsEnabled bool) (*RegisterOutcome, error) {
	fields := map[string]any{
		"externalProfile":      profile,
		"notificationsEnabled": notificationsEnabled,
	}
	var out RegisterOutcome
	if err := b.call(ctx, "register", fields, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) Redeem(ctx context.Context, ticket string) (*RedeemOutcome, error) {
	var out RedeemOutcome
	err := b.call(ctx, "redeem", map[string]any{"ticket": ticket}, "", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	var out core.SessionData
	if err := b.call(ctx, "get_session", nil, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBridge) SignOut(ctx context.Context, token string) error {
	return b.call(ctx, "sign_out", nil, token, nil)
}
