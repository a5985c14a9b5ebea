package session

import (
	"errors"
	"fmt"
	"sync"
)

// InMemoryStore is a volatile Store keeping records in a process local map.
// It is safe for concurrent access and best suited for tests or ephemeral
// processes. Records are cloned on the way in and out to prevent external
// mutation of stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*Record
}

// NewInMemoryStore constructs an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

// Save stores a clone of r. Saving an existing run id overwrites the record
// and keeps its position.
func (s *InMemoryStore) Save(r *Record) error {
	if r == nil || r.RunID == "" {
		return errors.New("record needs a run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.RunID]; !ok {
		s.order = append(s.order, r.RunID)
	}
	s.records[r.RunID] = r.Clone()
	return nil
}

// Get returns a clone of the record for runID.
func (s *InMemoryStore) Get(runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return r.Clone(), nil
}

// List returns clones of all records in save order.
func (s *InMemoryStore) List() ([]*Record, error) {
	return s.filter(func(*Record) bool { return true }), nil
}

// ListByProject returns clones of the records of projectID in save order.
func (s *InMemoryStore) ListByProject(projectID string) ([]*Record, error) {
	return s.filter(func(r *Record) bool { return r.ProjectID == projectID }), nil
}

func (s *InMemoryStore) filter(keep func(*Record) bool) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		if r := s.records[id]; keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}
