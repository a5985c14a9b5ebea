package session

import (
	"errors"
	"time"

	"github.com/hupe1980/agentfactory/core"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run record not found")

// Record is the outcome of one run.
type Record struct {
	RunID     string            `json:"run_id"`
	ProjectID string            `json:"project_id,omitempty"`
	Task      string            `json:"task"`
	Agent     string            `json:"agent"`
	Result    *core.AgentResult `json:"result,omitempty"`
	// Err holds a configuration error that prevented a result.
	Err        string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Iterations int           `json:"iterations"`
}

// Success reports whether the run produced a successful result.
func (r *Record) Success() bool {
	return r != nil && r.Err == "" && r.Result != nil && r.Result.Success
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Result = r.Result.Clone()
	return &c
}

// Store persists run records.
type Store interface {
	Save(r *Record) error
	Get(runID string) (*Record, error)
	// List returns every record in save order.
	List() ([]*Record, error)
	ListByProject(projectID string) ([]*Record, error)
}
