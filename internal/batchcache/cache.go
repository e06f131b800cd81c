// Package batchcache keeps generated practice batches per selection so a
// retry or a return to the same selection does not hit the generator again.
package batchcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/patrickJVGH/FluentFlow/internal/phrase"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown batch cache backend")

// Cache stores batches by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]phrase.Phrase, bool, error)
	Put(ctx context.Context, key string, items []phrase.Phrase) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds the cache key of a selection.
func Key(mode, topic string, difficulty phrase.Difficulty) string {
	return strings.ToLower(mode) + "|" + strings.ToLower(topic) + "|" + string(difficulty)
}

type entry struct {
	items   []phrase.Phrase
	expires time.Time
}

// Memory is an in-process cache with a per-entry ttl.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates a memory cache. ttl <= 0 keeps entries until deleted.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]phrase.Phrase, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return clone(e.items), true, nil
}

func (m *Memory) Put(_ context.Context, key string, items []phrase.Phrase) error {
	e := entry{items: clone(items)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored batches, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }

func clone(items []phrase.Phrase) []phrase.Phrase {
	out := make([]phrase.Phrase, len(items))
	copy(out, items)
	return out
}
