package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrBackendDown is returned by FailingStore.
var ErrBackendDown = errors.New("testsupport: cache backend down")

// RecordingStore is an in-memory cache store that records every call.
// It satisfies cache.Store.
type RecordingStore struct {
	mu      sync.Mutex
	entries map[string]recordedEntry
	calls   []string
	now     func() time.Time

	// RemoveErrors makes Remove fail for the listed keys.
	RemoveErrors map[string]error
}

type recordedEntry struct {
	value     string
	ttl       time.Duration
	expiresAt time.Time
}

// NewRecordingStore returns an empty store.
func NewRecordingStore() *RecordingStore {
	return &RecordingStore{
		entries:      make(map[string]recordedEntry),
		now:          time.Now,
		RemoveErrors: make(map[string]error),
	}
}

func (s *RecordingStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *RecordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Get:" + key)

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *RecordingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Set:" + key)

	s.entries[key] = recordedEntry{value: value, ttl: ttl, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *RecordingStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Remove:" + key)

	if err, ok := s.RemoveErrors[key]; ok {
		return err
	}
	delete(s.entries, key)
	return nil
}

// Put seeds an entry without recording a call.
func (s *RecordingStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = recordedEntry{value: value}
}

// Has reports whether key currently holds an entry.
func (s *RecordingStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// TTL returns the TTL key was last written with.
func (s *RecordingStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].ttl
}

// Keys returns the stored keys in sorted order.
func (s *RecordingStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns a copy of the recorded calls.
func (s *RecordingStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CountCalls returns how many recorded calls start with prefix, e.g. "Set:".
func (s *RecordingStore) CountCalls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// SetClock replaces the time source used for expiry.
func (s *RecordingStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailingStore fails every operation. With Block set, calls wait for the
// context to finish first, simulating a partitioned backend.
type FailingStore struct {
	Err   error
	Block bool

	mu    sync.Mutex
	calls int
}

func (s *FailingStore) fail(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.Err != nil {
		return s.Err
	}
	return ErrBackendDown
}

func (s *FailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, s.fail(ctx)
}

func (s *FailingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.fail(ctx)
}

func (s *FailingStore) Remove(ctx context.Context, key string) error {
	return s.fail(ctx)
}

// Calls returns the number of operations attempted.
func (s *FailingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
