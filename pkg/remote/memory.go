package remote

import (
	"context"
	"strconv"
	"sync"
)

type memoryEntry struct {
	data       []byte
	generation int64
}

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Pull(_ context.Context, user string) ([]byte, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[user]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), entry.data...), Version(strconv.FormatInt(entry.generation, 10)), nil
}

func (s *MemoryStore) Push(_ context.Context, user string, data []byte, parent Version) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[user]
	current := Version("")
	if ok {
		current = Version(strconv.FormatInt(entry.generation, 10))
	}
	if current != parent {
		return "", &ConflictError{Expected: parent, Actual: current}
	}

	next := int64(1)
	if ok {
		next = entry.generation + 1
	}
	s.entries[user] = &memoryEntry{data: append([]byte(nil), data...), generation: next}
	return Version(strconv.FormatInt(next, 10)), nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, user)
	return nil
}
