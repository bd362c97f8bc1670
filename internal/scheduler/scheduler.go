// Package scheduler implements the scheduling engine: it owns one ordering
// policy per algorithm, admits queued jobs under a concurrency ceiling and
// runs each admitted job on its own executor.
package scheduler

import (
	"context"
	"time"

	"github.com/me/gosched/internal/executor"
	"github.com/me/gosched/internal/policy"
	"github.com/me/gosched/pkg/model"
)

// Scheduler is the submission surface the API layer depends on.
type Scheduler interface {
	// Start launches the admission loop. It returns immediately.
	Start(ctx context.Context)

	// Stop halts the loop and every running executor.
	Stop()

	// AddJob routes a job to the policy for its algorithm.
	AddJob(j *model.Job) error

	// RemoveJob drops a queued job and stops its executor if one is active.
	RemoveJob(j *model.Job)

	// Status returns a snapshot of the engine.
	Status() model.SchedulerStatus
}

// Store is the part of the job store the engine uses.
type Store interface {
	executor.Store
	GetJob(ctx context.Context, id int64) (*model.Job, error)
}

// Config holds scheduler configuration.
type Config struct {
	MaxConcurrent int
	PollInterval  time.Duration
	ErrorBackoff  time.Duration
	StopTimeout   time.Duration
	Quantum       int
	Executor      executor.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
		PollInterval:  time.Second,
		ErrorBackoff:  5 * time.Second,
		StopTimeout:   5 * time.Second,
		Quantum:       policy.DefaultQuantum,
		Executor:      executor.DefaultConfig(),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkFunc replaces the simulated workload run by executors.
func WithWorkFunc(fn executor.WorkFunc) Option {
	return func(e *Engine) {
		e.cfg.Executor.Work = fn
	}
}

// WithTimeUnit sets the wall-clock length of one second of declared work.
func WithTimeUnit(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.Executor.TimeUnit = d
	}
}
