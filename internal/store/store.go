// Package store defines the repository abstractions the core consumes
// for persistence: threads, and the opaque blobs backing user/project
// config, prompts, and triggers. Content format is opaque to the core;
// concrete adapters choose their own encoding.
package store

import (
	"context"
	"sync"

	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/thread"
)

// ThreadStore persists ConversationThread snapshots.
type ThreadStore interface {
	Get(ctx context.Context, id string) (*thread.Thread, error)
	Save(ctx context.Context, th *thread.Thread) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]thread.Snapshot, error)
}

// ConfigStore persists opaque named blobs: user config, project config,
// stored prompts, triggers. The core never interprets the bytes.
type ConfigStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

var (
	_ ThreadStore = (*InMemoryThreadStore)(nil)
	_ ConfigStore = (*InMemoryConfigStore)(nil)
)

// InMemoryThreadStore is the core-owned reference ThreadStore: a
// process-lifetime map with no durable backing.
type InMemoryThreadStore struct {
	mu   sync.Mutex
	byID map[string]thread.Snapshot
}

// NewInMemoryThreadStore constructs an empty InMemoryThreadStore.
func NewInMemoryThreadStore() *InMemoryThreadStore {
	return &InMemoryThreadStore{byID: make(map[string]thread.Snapshot)}
}

// Get reconstructs a Thread from its stored snapshot.
func (s *InMemoryThreadStore) Get(ctx context.Context, id string) (*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.byID[id]
	if !ok {
		return nil, coreerr.NewNotFoundError("thread", id)
	}
	return thread.Restore(snap), nil
}

// Save stores th's current snapshot, overwriting any prior version.
func (s *InMemoryThreadStore) Save(ctx context.Context, th *thread.Thread) error {
	snap := th.ToSnapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[snap.ID] = snap
	return nil
}

// Delete removes a thread by id.
func (s *InMemoryThreadStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return coreerr.NewNotFoundError("thread", id)
	}
	delete(s.byID, id)
	return nil
}

// List returns every stored thread's snapshot.
func (s *InMemoryThreadStore) List(ctx context.Context) ([]thread.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]thread.Snapshot, 0, len(s.byID))
	for _, snap := range s.byID {
		out = append(out, snap)
	}
	return out, nil
}

// InMemoryConfigStore is the core-owned reference ConfigStore.
type InMemoryConfigStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewInMemoryConfigStore constructs an empty InMemoryConfigStore.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{data: make(map[string][]byte)}
}

func (s *InMemoryConfigStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, coreerr.NewNotFoundError("config", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *InMemoryConfigStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[key] = cp
	return nil
}

func (s *InMemoryConfigStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return coreerr.NewNotFoundError("config", key)
	}
	delete(s.data, key)
	return nil
}

func (s *InMemoryConfigStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out, nil
}
