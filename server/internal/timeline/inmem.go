package timeline

import (
	"context"
	"sync"

	"novel-engine/server/internal/model"
)

type sessionLog struct {
	events []model.Event
	byID   map[string]int64
}

// InMemoryStore 是一个基于内存的 Timeline 存储实现。
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionLog)}
}

// Append 追加事件，为该 session 分配单调递增的 seq。
func (s *InMemoryStore) Append(_ context.Context, sessionID string, evt *model.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.sessions[sessionID]
	if !ok {
		log = &sessionLog{byID: make(map[string]int64)}
		s.sessions[sessionID] = log
	}
	if evt.EventID != "" {
		if seq, seen := log.byID[evt.EventID]; seen {
			return seq, nil
		}
	}

	seq := int64(len(log.events)) + 1
	stored := *evt
	stored.Seq = seq
	stored.SessionID = sessionID
	if evt.Target != nil {
		target := *evt.Target
		stored.Target = &target
	}
	log.events = append(log.events, stored)
	if evt.EventID != "" {
		log.byID[evt.EventID] = seq
	}
	return seq, nil
}

// List 返回 seq 大于 after 的事件副本。
func (s *InMemoryStore) List(_ context.Context, sessionID string, after int64) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.sessions[sessionID]
	if !ok {
		return []model.Event{}, nil
	}
	// seq 从 1 开始连续分配，下标即 seq-1
	start := int(after)
	if start < 0 {
		start = 0
	}
	if start > len(log.events) {
		start = len(log.events)
	}
	out := make([]model.Event, len(log.events)-start)
	copy(out, log.events[start:])
	return out, nil
}
