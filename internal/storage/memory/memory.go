// Package memory keeps dashboard sessions and comparison remarks in process.
// It is used when no database is configured.
package memory

import (
	"context"
	"maps"
	"sync"

	"tender_dashboard/internal/session"
	"tender_dashboard/internal/storage"
)

type Storage struct {
	mu       sync.RWMutex
	sessions map[string]session.State
	remarks  map[string]map[string]string
}

func New() *Storage {
	return &Storage{
		sessions: make(map[string]session.State),
		remarks:  make(map[string]map[string]string),
	}
}

func (s *Storage) GetSession(_ context.Context, id string) (session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return session.State{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Storage) SaveSession(_ context.Context, id string, st session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = st
	return nil
}

func (s *Storage) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Storage) GetRemarks(_ context.Context, owner string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.remarks[owner]))
	maps.Copy(out, s.remarks[owner])
	return out, nil
}

// SaveRemarks replaces every remark of owner. Empty remarks are dropped.
func (s *Storage) SaveRemarks(_ context.Context, owner string, remarks map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make(map[string]string, len(remarks))
	for aspect, remark := range remarks {
		if remark != "" {
			kept[aspect] = remark
		}
	}
	if len(kept) == 0 {
		delete(s.remarks, owner)
		return nil
	}
	s.remarks[owner] = kept
	return nil
}
