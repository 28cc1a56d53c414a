package hints

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
)

// File is a hint store persisted as one file per key under a private
// directory. The directory is created with 0700 and files with 0600 since
// hints can reference account identifiers.
//
// All filesystem failures degrade to "no hint available": Get reports
// absence, Set and Delete drop the error. Hints must never escalate a
// local-only failure to the user.
type File struct {
	mu  sync.RWMutex
	dir string

	// memory front so a flaky disk still behaves consistently within one
	// process lifetime
	cache map[string]string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &File{
		dir:   dir,
		cache: make(map[string]string),
	}, nil
}

func (f *File) path(key string) string {
	// Keys are caller-chosen names; hash them so they are always safe as
	// file names.
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:16])+".hint")
}

func (f *File) Get(key string) (string, bool) {
	f.mu.RLock()
	if v, ok := f.cache[key]; ok {
		f.mu.RUnlock()
		return v, true
	}
	f.mu.RUnlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return "", false
	}

	f.mu.Lock()
	f.cache[key] = string(data)
	f.mu.Unlock()

	return string(data), true
}

func (f *File) Set(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()

	// Best effort persistence
	_ = os.WriteFile(f.path(key), []byte(value), 0600)
}

func (f *File) Delete(key string) {
	f.mu.Lock()
	delete(f.cache, key)
	f.mu.Unlock()

	_ = os.Remove(f.path(key))
}

func (f *File) Clear() {
	f.mu.Lock()
	f.cache = make(map[string]string)
	f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".hint" {
			_ = os.Remove(filepath.Join(f.dir, e.Name()))
		}
	}
}
