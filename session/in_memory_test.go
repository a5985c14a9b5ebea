package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfactory/core"
)

var _ Store = (*InMemoryStore)(nil)

func record(id, project string) *Record {
	return &Record{
		RunID:     id,
		ProjectID: project,
		Task:      "task " + id,
		Agent:     "pipeline",
		Result:    core.Success("ok", map[string]any{"k": "v"}),
		StartedAt: time.Unix(0, 0),
	}
}

func TestInMemoryStore_SaveGet(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save(record("r1", "p1")))

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "task r1", got.Task)
	assert.True(t, got.Success())

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Save(&Record{}))
	assert.Error(t, s.Save(nil))
}

func TestInMemoryStore_ClonesOnReadAndWrite(t *testing.T) {
	s := NewInMemoryStore()
	r := record("r1", "p1")
	require.NoError(t, s.Save(r))

	r.Result.Data["k"] = "mutated"
	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Result.Data["k"])

	got.Result.Output = "changed"
	again, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "ok", again.Result.Output)
}

func TestInMemoryStore_ListOrderAndProject(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save(record("r1", "p1")))
	require.NoError(t, s.Save(record("r2", "p2")))
	require.NoError(t, s.Save(record("r3", "p1")))
	require.NoError(t, s.Save(record("r1", "p1")))

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	p1, err := s.ListByProject("p1")
	require.NoError(t, err)
	require.Len(t, p1, 2)
	assert.Equal(t, "r3", p1[1].RunID)

	none, err := s.ListByProject("nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecord_Success(t *testing.T) {
	var nilRecord *Record
	assert.False(t, nilRecord.Success())
	assert.False(t, (&Record{Err: "boom", Result: core.Success("x", nil)}).Success())
	assert.False(t, (&Record{}).Success())
	assert.Nil(t, nilRecord.Clone())
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Save(record(string(rune('a'+i)), "p"))
			_, _ = s.List()
		}(i)
	}
	wg.Wait()

	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
