package core

import (
	"fmt"
	"testing"
	"time"
)

func testSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		AccountID: "acc-456",
		TokenHash: "hash-" + id,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemorySessionCacheGetSetShouldStoreAndRetrieve(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 500,
	})

	session := testSession("session123")

	if err := cache.Set(session.TokenHash, session); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := cache.Get(session.TokenHash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != session.ID {
		t.Errorf("Expected ID %s, got %s", session.ID, retrieved.ID)
	}
	if retrieved.AccountID != session.AccountID {
		t.Errorf("Expected AccountID %s, got %s", session.AccountID, retrieved.AccountID)
	}
}

func TestInMemorySessionCacheGetNonExistentShouldReturnErrCacheNotFound(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 500,
	})

	if _, err := cache.Get("nonexistent"); err != ErrCacheNotFound {
		t.Errorf("Expected ErrCacheNotFound, got %v", err)
	}
}

func TestInMemorySessionCacheExpiryShouldExpireEntriesAfterTTL(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     100 * time.Millisecond,
		MaxSize: 500,
	})

	session := testSession("session123")
	cache.Set(session.TokenHash, session)

	if _, err := cache.Get(session.TokenHash); err != nil {
		t.Error("Session should exist immediately after Set")
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cache.Get(session.TokenHash); err != ErrCacheNotFound {
		t.Error("Session should be expired and removed from cache")
	}
	if cache.Len() != 0 {
		t.Errorf("Cache should be empty after expired entry removed, got size %d", cache.Len())
	}
}

func TestInMemorySessionCacheDeleteShouldRemoveEntry(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 500,
	})

	session := testSession("session123")
	cache.Set(session.TokenHash, session)

	if err := cache.Delete(session.TokenHash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(session.TokenHash); err != ErrCacheNotFound {
		t.Error("Entry should be gone after Delete")
	}
}

func TestInMemorySessionCacheClearShouldRemoveAllEntries(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 500,
	})

	for i := 0; i < 5; i++ {
		s := testSession(fmt.Sprintf("session%d", i))
		cache.Set(s.TokenHash, s)
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got size %d", cache.Len())
	}
}

func TestInMemorySessionCacheEvictionShouldNotExceedMaxSize(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 3,
	})

	for i := 0; i < 5; i++ {
		s := testSession(fmt.Sprintf("session%d", i))
		cache.Set(s.TokenHash, s)
	}

	if cache.Len() > 3 {
		t.Errorf("Cache grew past MaxSize: %d", cache.Len())
	}
	if cache.Stats().Evictions == 0 {
		t.Error("Expected evictions to be counted")
	}
}

func TestInMemorySessionCacheStatsShouldCountHitsAndMisses(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 500,
	})

	session := testSession("session123")
	cache.Set(session.TokenHash, session)

	cache.Get(session.TokenHash) // hit
	cache.Get("missing")         // miss
	cache.Get("missing")         // miss

	stats := cache.Stats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Expected 2 misses, got %d", stats.Misses)
	}
	if stats.Sets != 1 {
		t.Errorf("Expected 1 set, got %d", stats.Sets)
	}
	if stats.Size != 1 {
		t.Errorf("Expected size 1, got %d", stats.Size)
	}
}

func TestInMemorySessionCacheDefaultsApply(t *testing.T) {
	cache := NewInMemorySessionCache(CacheConfig{})

	stats := cache.Stats()
	if stats.TTL != 5*time.Minute {
		t.Errorf("Expected default TTL of 5m, got %v", stats.TTL)
	}
}
