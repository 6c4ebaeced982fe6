package worker

import (
	"context"
	"errors"
)

// JobHandler defines the interface that all scheduled jobs must implement.
type JobHandler interface {
	// Type returns the job type identifier, used in logs and metrics.
	Type() string

	// Handle performs one run. Runs never overlap for the same handler.
	Handle(ctx context.Context) error
}

// JobFunc adapts a function to JobHandler.
type JobFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Type implements JobHandler.
func (f JobFunc) Type() string { return f.Name }

// Handle implements JobHandler.
func (f JobFunc) Handle(ctx context.Context) error { return f.Fn(ctx) }

// ErrUnknownJob is returned by RunNow for an unregistered job type.
var ErrUnknownJob = errors.New("unknown job type")
