package history

import (
	"context"
	"sync"
)

// MemoryStore keeps history in process memory, newest first.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []SavedRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, run SavedRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == run.ID {
			return ErrDuplicateRun
		}
	}
	m.runs = append([]SavedRun{run}, m.runs...)
	return nil
}

func (m *MemoryStore) List(_ context.Context, userID string) ([]SavedRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []SavedRun{}
	for _, r := range m.runs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (SavedRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return SavedRun{}, ErrRunNotFound
}
