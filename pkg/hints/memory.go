// Package hints implements the client-side persistence cache: a small set
// of named string values (account id, profile snapshot, linked external id,
// pending registration payload, anti-forgery state). Every value is a hint
// used to shorten perceived load time - never a source of truth. Reads
// report absence rather than failing, and write errors are swallowed, so
// callers can treat any subset of hints as missing or stale.
package hints

import "sync"

// Memory is an in-process hint store. Useful for tests and for hosts that
// do not survive a page load anyway.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}
