package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_GetAndPut(t *testing.T) {
	m := NewInMemoryStore()

	st, err := m.Get("p1")
	require.NoError(t, err)
	assert.Empty(t, st)

	require.NoError(t, m.Put("p1", map[string]any{"lang": "go", "tags": []any{"a"}}))
	require.NoError(t, m.Put("p1", map[string]any{"stage": 2}))

	st, err = m.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "go", st["lang"])
	assert.Equal(t, 2, st["stage"])

	st["lang"] = "changed"
	st["tags"].([]any)[0] = "changed"
	again, _ := m.Get("p1")
	assert.Equal(t, "go", again["lang"])
	assert.Equal(t, []any{"a"}, again["tags"])

	other, _ := m.Get("p2")
	assert.Empty(t, other)
}

func TestInMemoryStore_RememberSearch(t *testing.T) {
	m := NewInMemoryStore()
	_, err := m.Remember("p1", "Implemented OAuth login flow", map[string]any{"agent": "coder"})
	require.NoError(t, err)
	_, err = m.Remember("p1", "Reviewed login handler for SQL injection", nil)
	require.NoError(t, err)
	_, err = m.Remember("p1", "Deployed to staging", nil)
	require.NoError(t, err)
	_, err = m.Remember("p2", "login elsewhere", nil)
	require.NoError(t, err)

	res, err := m.Search("p1", "oauth LOGIN", 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Implemented OAuth login flow", res[0].Content)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "coder", res[0].Metadata["agent"])
	assert.InDelta(t, 0.5, res[1].Score, 1e-9)

	all, err := m.Search("p1", "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := m.Search("p1", "kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_Delete(t *testing.T) {
	m := NewInMemoryStore()
	id, err := m.Remember("p1", "note", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete("p1", id))
	assert.ErrorIs(t, m.Delete("p1", id), ErrNotFound)

	res, _ := m.Search("p1", "", 0)
	assert.Empty(t, res)
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	m := NewInMemoryStore()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Remember("p", "entry", nil)
			_ = m.Put("p", map[string]any{"k": 1})
			_, _ = m.Search("p", "entry", 0)
		}()
	}
	wg.Wait()

	res, err := m.Search("p", "entry", 0)
	require.NoError(t, err)
	assert.Len(t, res, 10)
}
