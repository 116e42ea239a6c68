// Package cache implements the translation memory: a persistent store of
// translations keyed by target language and source text hash, with
// policy-driven eviction.
package cache

import (
	"context"
	"time"

	"github.com/ZaguanLabs/transctl"
)

// Entry is one translation memory row. Timestamps are epoch seconds.
type Entry struct {
	Lang        string `json:"lang"`
	Hash        string `json:"hash"`
	Translation string `json:"translation"`
	CreatedAt   int64  `json:"created_at"`
	LastUsedAt  int64  `json:"last_used_at"`
}

// Key returns the entry's cache key.
func (e Entry) Key() transctl.CacheKey {
	return transctl.CacheKey{Lang: e.Lang, Hash: e.Hash}
}

// PrunePolicy controls when and how the store is pruned. A zero or negative
// limit disables that condition.
type PrunePolicy struct {
	TTLDays int  // Rows unused for longer are deleted
	MaxRows int  // Least recently used rows beyond this count are deleted
	MaxDBMB int  // Store size that triggers a prune
	Vacuum  bool // Reclaim freed pages after deleting
}

// DefaultPrunePolicy returns the policy used when none is configured.
func DefaultPrunePolicy() PrunePolicy {
	return PrunePolicy{
		TTLDays: 180,
		MaxRows: 200_000,
		MaxDBMB: 200,
		Vacuum:  true,
	}
}

// PruneResult reports what a prune did.
type PruneResult struct {
	Triggered  bool  // At least one policy condition held
	Expired    int64 // Rows deleted by TTL
	Evicted    int64 // Rows deleted to honour MaxRows
	Vacuumed   bool
	RowsBefore int64
	RowsAfter  int64
}

// Stats summarises the contents of a store.
type Stats struct {
	Rows      int64
	Languages map[string]int64
	OldestUse time.Time // Zero when empty
	NewestUse time.Time // Zero when empty
	SizeBytes int64
}

// Store is a translation memory. Lookup and Upsert outside a session are
// committed immediately.
type Store interface {
	transctl.TranslationMemory
	Lookup(ctx context.Context, key transctl.CacheKey) (string, bool, error)
	Upsert(ctx context.Context, key transctl.CacheKey, translation string) error
	// Put stores an entry with its own timestamps, keeping the most recent
	// last use when the key already exists.
	Put(ctx context.Context, e Entry) error
	Prune(ctx context.Context, policy PrunePolicy) (PruneResult, error)
	Stats(ctx context.Context) (Stats, error)
	// Entries returns every row ordered by language and hash.
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

func defaultOptions() options {
	return options{now: time.Now}
}

// WithClock overrides the time source used for timestamps and TTL checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func ttlCutoff(now time.Time, days int) int64 {
	return now.Unix() - int64(days)*24*3600
}
