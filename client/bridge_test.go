package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kairan-app/kairan/core"
)

type recordedRequest struct {
	Action string          `json:"action"`
	Body   json.RawMessage `json:"-"`
	Auth   string          `json:"-"`
}

func newBridgeServer(t *testing.T, respond func(action string, w http.ResponseWriter)) (*HTTPBridge, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		decoder := json.NewDecoder(r.Body)
		if err := decoder.Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		req.Auth = r.Header.Get("Authorization")
		requests = append(requests, req)
		respond(req.Action, w)
	}))
	t.Cleanup(server.Close)

	return NewHTTPBridge(server.URL+"/auth/action", nil), &requests
}

func TestHTTPBridgeCallback(t *testing.T) {
	bridge, requests := newBridgeServer(t, func(action string, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(ResolveOutcome{
			Status:  "existing",
			Profile: &core.ExternalIdentity{ExternalUserID: "U-1"},
			Ticket:  "ticket-1",
		})
	})

	outcome, err := bridge.Callback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Callback() error = %v", err)
	}
	if outcome.Status != "existing" || outcome.Ticket != "ticket-1" {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(*requests) != 1 || (*requests)[0].Action != "callback" {
		t.Errorf("requests = %+v", *requests)
	}
}

func TestHTTPBridgeLogicalError(t *testing.T) {
	bridge, _ := newBridgeServer(t, func(action string, w http.ResponseWriter) {
		// Logical failures travel inside a 2xx response.
		json.NewEncoder(w).Encode(map[string]string{"error": core.ErrLinkConflict.Error()})
	})

	_, err := bridge.Register(context.Background(), core.ExternalIdentity{ExternalUserID: "U-1"}, false)
	if !errors.Is(err, core.ErrLinkConflict) {
		t.Errorf("err = %v, want ErrLinkConflict mapped from the wire", err)
	}
}

func TestHTTPBridgeUnknownLogicalError(t *testing.T) {
	bridge, _ := newBridgeServer(t, func(action string, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]string{"error": "something exotic"})
	})

	_, err := bridge.Callback(context.Background(), "auth-code")
	var bridgeErr *BridgeError
	if !errors.As(err, &bridgeErr) {
		t.Fatalf("err = %T, want *BridgeError", err)
	}
	if bridgeErr.Action != "callback" || bridgeErr.Message != "something exotic" {
		t.Errorf("bridgeErr = %+v", bridgeErr)
	}
}

func TestHTTPBridgeTransportFailure(t *testing.T) {
	bridge, _ := newBridgeServer(t, func(action string, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := bridge.GetSession(context.Background(), "tok")
	if !errors.Is(err, core.ErrDirectoryUnavailable) {
		t.Errorf("err = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestHTTPBridgeServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	bridge := NewHTTPBridge(server.URL, nil)
	server.Close()

	_, err := bridge.GetAuthURL(context.Background())
	if !errors.Is(err, core.ErrDirectoryUnavailable) {
		t.Errorf("err = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestHTTPBridgeBearerToken(t *testing.T) {
	bridge, requests := newBridgeServer(t, func(action string, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	if err := bridge.SignOut(context.Background(), "tok-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if got := (*requests)[0].Auth; got != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", got)
	}
}
