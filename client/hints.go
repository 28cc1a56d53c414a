package client

import (
	"encoding/json"

	"github.com/kairan-app/kairan/core"
)

// Hint keys under which the orchestrator persists its load-time shortcuts.
// Every value is advisory: correctness never depends on one being present
// or fresh.
const (
	HintSessionToken        = "kairan.session_token"
	HintAccountID           = "kairan.account_id"
	HintProfile             = "kairan.profile"
	HintLinkedExternalID    = "kairan.linked_external_id"
	HintPendingRegistration = "kairan.pending_registration"
	HintAuthorizeState      = "kairan.authorize_state"
)

// readProfileHint decodes a stored profile blob. A hint that fails to parse
// is dropped and treated as absent.
func readProfileHint(store core.HintStore, key string) *core.ExternalIdentity {
	raw, ok := store.Get(key)
	if !ok || raw == "" {
		return nil
	}

	var profile core.ExternalIdentity
	if err := json.Unmarshal([]byte(raw), &profile); err != nil || profile.ExternalUserID == "" {
		store.Delete(key)
		return nil
	}
	return &profile
}

func writeProfileHint(store core.HintStore, key string, profile *core.ExternalIdentity) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	store.Set(key, string(raw))
}
