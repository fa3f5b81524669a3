package identity

import (
	"context"
	"sync"
)

// Storage persists one session per key. Keys are browser-tab identifiers.
type Storage interface {
	Load(ctx context.Context, key string) (Session, bool, error)
	Save(ctx context.Context, key string, sess Session) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage keeps sessions in process memory; they do not survive a restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]Session)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	return sess, ok, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, sess Session) error {
	m.mu.Lock()
	m.sessions[key] = sess
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}
