package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/agentfactory/core"
)

// ErrNotFound is returned when deleting an unknown memory.
var ErrNotFound = errors.New("memory not found")

// SearchResult is a retrieved memory with its relevance score.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store is project scoped memory.
type Store interface {
	// Get returns a copy of the project's key/value state.
	Get(projectID string) (map[string]any, error)
	// Put merges delta into the project's state.
	Put(projectID string, delta map[string]any) error
	// Remember stores content and returns its id.
	Remember(projectID, content string, metadata map[string]any) (string, error)
	// Search returns up to limit memories ranked by relevance to query.
	Search(projectID, query string, limit int) ([]SearchResult, error)
	Delete(projectID, memoryID string) error
}

type stored struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore is a process-local Store.
//
// Search scores a memory by the fraction of query terms it contains
// (case-insensitive) and ranks ties by insertion order. An empty query
// matches everything with score 1.
type InMemoryStore struct {
	mu      sync.RWMutex
	state   map[string]map[string]any // projectID -> key -> value
	entries map[string][]stored       // projectID -> memories in insertion order
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		state:   make(map[string]map[string]any),
		entries: make(map[string][]stored),
	}
}

// Get returns a deep copy of the project's state.
func (m *InMemoryStore) Get(projectID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return core.CopyMap(m.state[projectID]), nil
}

// Put merges delta into the project's state.
func (m *InMemoryStore) Put(projectID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[projectID]
	if !ok {
		st = make(map[string]any, len(delta))
		m.state[projectID] = st
	}
	for k, v := range core.CopyMap(delta) {
		st[k] = v
	}
	return nil
}

// Remember appends a memory for the project.
func (m *InMemoryStore) Remember(projectID, content string, metadata map[string]any) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[projectID] = append(m.entries[projectID], stored{
		id:       id,
		content:  content,
		metadata: core.CopyMap(metadata),
	})
	return id, nil
}

// Search ranks the project's memories against query.
func (m *InMemoryStore) Search(projectID, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	results := make([]SearchResult, 0)
	for _, e := range m.entries[projectID] {
		score := relevance(terms, e.content)
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{
			ID:       e.id,
			Content:  e.content,
			Score:    score,
			Metadata: core.CopyMap(e.metadata),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func relevance(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 1
	}
	return float64(core.MatchCount(terms, content)) / float64(len(terms))
}

// Delete removes a memory by id.
func (m *InMemoryStore) Delete(projectID, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[projectID]
	for i, e := range entries {
		if e.id == memoryID {
			m.entries[projectID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, memoryID)
}
