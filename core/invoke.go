package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNilResult is reported when an agent returns neither a result nor an error.
var ErrNilResult = errors.New("agent returned no result")

// PanicError carries a panic recovered from an agent's Execute.
type PanicError struct {
	Agent string
	Value any
	Stack []byte
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("agent %s panicked: %v", e.Agent, e.Value)
}

// Invoke runs a.Execute and guarantees the call never panics: a recovered
// panic is returned as *PanicError and a nil result without error is
// returned as ErrNilResult. When err is nil, the result is non-nil.
func Invoke(ctx context.Context, a Agent, actx *AgentContext) (res *AgentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &PanicError{Agent: a.Name(), Value: r, Stack: debug.Stack()}
		}
	}()

	res, err = a.Execute(ctx, actx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), ErrNilResult)
	}
	return res, nil
}
