// Package throttle provides fixed-window request throttling for HTTP
// handlers. Each guarded route class owns a Guard composed of an immutable
// Policy and an in-memory WindowStore; a shared Reaper periodically evicts
// expired window records. The package includes HTTP middleware that sets
// standard rate limit response headers and short-circuits denied requests
// with a 429 and a structured JSON body.
package throttle

import (
	"sync"
	"time"
)

// WindowRecord tracks charged events for one limiting key within the current
// counting window.
type WindowRecord struct {
	Count   int       // charged events in the current window
	ResetAt time.Time // when the current window ends
}

// active reports whether the record's window covers the given instant. The
// check is strictly greater-than: a request arriving exactly at ResetAt
// belongs to a new window. A negative count marks a corrupted record, which
// is treated as expired rather than propagated.
func (r *WindowRecord) active(now time.Time) bool {
	return r.Count >= 0 && r.ResetAt.After(now)
}

// WindowStore is a key-addressable store of window records. All operations
// are safe for concurrent use; the read-check-increment sequence used by
// guards is a single critical section per key (see Charge), so two racing
// requests for the same key can never both claim the last slot.
type WindowStore struct {
	mu      sync.Mutex
	records map[string]*WindowRecord
}

// NewWindowStore creates an empty store.
func NewWindowStore() *WindowStore {
	return &WindowStore{records: make(map[string]*WindowRecord)}
}

// GetOrInit returns the record for key if its window is still active,
// otherwise replaces it with a fresh record (count 0, reset now+window).
func (s *WindowStore) GetOrInit(key string, now time.Time, window time.Duration) WindowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrInitLocked(key, now, window)
}

func (s *WindowStore) getOrInitLocked(key string, now time.Time, window time.Duration) *WindowRecord {
	rec, ok := s.records[key]
	if !ok || !rec.active(now) {
		rec = &WindowRecord{Count: 0, ResetAt: now.Add(window)}
		s.records[key] = rec
	}
	return rec
}

// Charge atomically initializes the window for key if needed, then charges
// one event unless the ceiling has been reached. It returns the record state
// after the operation and whether the event was admitted. When max <= 0
// every request is denied; a misconfigured policy must not silently admit
// unlimited traffic.
func (s *WindowStore) Charge(key string, now time.Time, window time.Duration, max int) (WindowRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrInitLocked(key, now, window)
	if max <= 0 || rec.Count >= max {
		return *rec, false
	}
	rec.Count++
	return *rec, true
}

// Increment charges one event for an existing key. No-op if the key is
// absent; callers must GetOrInit first.
func (s *WindowStore) Increment(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.Count++
	}
}

// Decrement refunds one charged event, floored at zero. Used to undo an
// optimistic charge after a successful outcome.
func (s *WindowStore) Decrement(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok && rec.Count > 0 {
		rec.Count--
	}
}

// Reset clears the charge count for key without touching the window end.
// A successful login clears the slate for that account.
func (s *WindowStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.Count = 0
	}
}

// SweepExpired removes every record whose window has ended and returns how
// many were removed.
func (s *WindowStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if !rec.active(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired records included.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
