package session

import (
	"context"
	"errors"
	"sync"

	"novel-engine/server/internal/model"
)

var ErrNotFound = errors.New("session not found")

// InMemoryStore 是一个基于内存的 Session 存储实现。
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.SessionState
}

func NewInMemoryStore() *InMemoryStore {
	// 重启即丢数据；需要持久化时使用 SQLiteStore。
	return &InMemoryStore{data: make(map[string]model.SessionState)}
}

// Get 根据 SessionID 获取 SessionState 的副本。
func (s *InMemoryStore) Get(_ context.Context, id string) (*model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

// Save 保存或更新 SessionState。
func (s *InMemoryStore) Save(_ context.Context, state *model.SessionState) error {
	if state == nil || state.SessionID == "" {
		return errors.New("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[state.SessionID] = *state
	return nil
}
