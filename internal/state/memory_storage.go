package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps states in process memory. It suits tests and single-process development runs.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[string]*ConversationState
	now    func() time.Time
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		states: make(map[string]*ConversationState),
		now:    time.Now,
	}
}

func (s *MemoryStorage) GetState(_ context.Context, key string) (*ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}

	return st.Clone(), nil
}

func (s *MemoryStorage) SetState(_ context.Context, key string, st *ConversationState) error {
	st.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = st.Clone()
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, key)
	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) (map[string]*ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*ConversationState, len(s.states))
	for key, st := range s.states {
		result[key] = st.Clone()
	}
	return result, nil
}
