package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ZaguanLabs/transctl"
)

// MemoryStore is a thread-safe translation memory kept in process memory.
// It follows the same semantics as SQLiteStore and suits tests and
// throwaway runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[transctl.CacheKey]Entry
	opts    options
}

var (
	_ Store                  = (*MemoryStore)(nil)
	_ transctl.MemorySession = (*memorySession)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[transctl.CacheKey]Entry),
		opts:    defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Lookup returns the translation for key and refreshes its last use.
func (s *MemoryStore) Lookup(ctx context.Context, key transctl.CacheKey) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	e.LastUsedAt = s.opts.now().Unix()
	s.entries[key] = e
	return e.Translation, true, nil
}

// Upsert inserts or replaces the translation for key.
func (s *MemoryStore) Upsert(ctx context.Context, key transctl.CacheKey, translation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(key, translation, s.opts.now().Unix())
	return nil
}

func (s *MemoryStore) upsertLocked(key transctl.CacheKey, translation string, now int64) {
	e, ok := s.entries[key]
	if !ok {
		e = Entry{Lang: key.Lang, Hash: key.Hash, CreatedAt: now}
	}
	e.Translation = translation
	e.LastUsedAt = now
	s.entries[key] = e
}

// Put stores e, keeping the most recent last use on conflict.
func (s *MemoryStore) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[e.Key()]; ok {
		e.CreatedAt = min(e.CreatedAt, old.CreatedAt)
		e.LastUsedAt = max(e.LastUsedAt, old.LastUsedAt)
	}
	s.entries[e.Key()] = e
	return nil
}

// Session returns a session that buffers its changes until Commit.
func (s *MemoryStore) Session(ctx context.Context) (transctl.MemorySession, error) {
	return &memorySession{
		store:   s,
		touched: make(map[transctl.CacheKey]int64),
		written: make(map[transctl.CacheKey]string),
	}, nil
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries from the store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[transctl.CacheKey]Entry)
}

// sizeBytes approximates the storage used by the entries.
func (s *MemoryStore) sizeBytes() int64 {
	var n int64
	for _, e := range s.entries {
		n += int64(len(e.Lang) + len(e.Hash) + len(e.Translation) + 16)
	}
	return n
}

// Prune applies policy with the same rules as SQLiteStore.Prune. The size
// condition uses an estimate of the memory held by the entries.
func (s *MemoryStore) Prune(ctx context.Context, policy PrunePolicy) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	res := PruneResult{RowsBefore: int64(len(s.entries))}
	res.RowsAfter = res.RowsBefore

	if policy.MaxDBMB > 0 && s.sizeBytes() > int64(policy.MaxDBMB)*1024*1024 {
		res.Triggered = true
	}
	if policy.MaxRows > 0 && len(s.entries) > policy.MaxRows {
		res.Triggered = true
	}
	if policy.TTLDays > 0 {
		cutoff := ttlCutoff(now, policy.TTLDays)
		for _, e := range s.entries {
			if e.LastUsedAt < cutoff {
				res.Triggered = true
				break
			}
		}
	}
	if !res.Triggered {
		return res, nil
	}

	if policy.TTLDays > 0 {
		cutoff := ttlCutoff(now, policy.TTLDays)
		for k, e := range s.entries {
			if e.LastUsedAt < cutoff {
				delete(s.entries, k)
				res.Expired++
			}
		}
	}

	if over := len(s.entries) - policy.MaxRows; policy.MaxRows > 0 && over > 0 {
		lru := make([]Entry, 0, len(s.entries))
		for _, e := range s.entries {
			lru = append(lru, e)
		}
		sort.Slice(lru, func(i, j int) bool {
			if lru[i].LastUsedAt != lru[j].LastUsedAt {
				return lru[i].LastUsedAt < lru[j].LastUsedAt
			}
			return lru[i].CreatedAt < lru[j].CreatedAt
		})
		for _, e := range lru[:over] {
			delete(s.entries, e.Key())
			res.Evicted++
		}
	}

	res.RowsAfter = int64(len(s.entries))
	res.Vacuumed = policy.Vacuum
	return res, nil
}

// Stats returns row counts per language and the use time range.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Languages: make(map[string]int64), SizeBytes: s.sizeBytes()}
	var oldest, newest int64
	for _, e := range s.entries {
		st.Rows++
		st.Languages[e.Lang]++
		if oldest == 0 || e.LastUsedAt < oldest {
			oldest = e.LastUsedAt
		}
		if e.LastUsedAt > newest {
			newest = e.LastUsedAt
		}
	}
	if st.Rows > 0 {
		st.OldestUse = time.Unix(oldest, 0)
		st.NewestUse = time.Unix(newest, 0)
	}
	return st, nil
}

// Entries returns every entry ordered by language and hash.
func (s *MemoryStore) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lang != out[j].Lang {
			return out[i].Lang < out[j].Lang
		}
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// memorySession records touches and writes and applies them on Commit.
type memorySession struct {
	store   *MemoryStore
	touched map[transctl.CacheKey]int64
	written map[transctl.CacheKey]string
	done    bool
}

func (ms *memorySession) Lookup(ctx context.Context, key transctl.CacheKey) (string, bool, error) {
	if tr, ok := ms.written[key]; ok {
		return tr, true, nil
	}

	ms.store.mu.RLock()
	e, ok := ms.store.entries[key]
	ms.store.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	ms.touched[key] = ms.store.opts.now().Unix()
	return e.Translation, true, nil
}

func (ms *memorySession) Upsert(ctx context.Context, key transctl.CacheKey, translation string) error {
	ms.written[key] = translation
	ms.touched[key] = ms.store.opts.now().Unix()
	return nil
}

func (ms *memorySession) Commit() error {
	if ms.done {
		return &transctl.StoreError{Message: "session already finished"}
	}
	ms.done = true

	ms.store.mu.Lock()
	defer ms.store.mu.Unlock()

	for key, at := range ms.touched {
		if tr, ok := ms.written[key]; ok {
			ms.store.upsertLocked(key, tr, at)
			continue
		}
		// Entries pruned since the lookup stay gone.
		if e, ok := ms.store.entries[key]; ok {
			e.LastUsedAt = at
			ms.store.entries[key] = e
		}
	}
	return nil
}

func (ms *memorySession) Rollback() error {
	ms.done = true
	ms.touched = nil
	ms.written = nil
	return nil
}
