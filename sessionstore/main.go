// Package sessionstore is the injected replacement for the original app's
// ambient browser storage: a keyed session state plus an append-only
// transcript, created at conversation start and cleared on explicit reset.
package sessionstore

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	SaveSession(ctx context.Context, id string, state []byte) error
	LoadSession(ctx context.Context, id string) ([]byte, error)
	AppendMessage(ctx context.Context, id string, msg []byte) error
	Messages(ctx context.Context, id string) ([][]byte, error)
	Clear(ctx context.Context, id string) error
}

// MemoryStore keeps everything in process memory. Default for development
// and tests; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	messages map[string][][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string][]byte{},
		messages: map[string][][]byte{},
	}
}

func (m *MemoryStore) SaveSession(_ context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append([]byte(nil), state...)
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), state...), nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, id string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id] = append(m.messages[id], append([]byte(nil), msg...))
	return nil
}

func (m *MemoryStore) Messages(_ context.Context, id string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[id]
	out := make([][]byte, len(msgs))
	for i, msg := range msgs {
		out[i] = append([]byte(nil), msg...)
	}
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}
