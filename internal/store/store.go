package store

import (
	"context"
	"errors"

	"github.com/me/gosched/pkg/model"
)

var (
	// ErrNotFound is returned when a job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrJobRunning is returned when editing a job that is RUNNING.
	ErrJobRunning = errors.New("job is running")

	// ErrJobTerminal is returned when editing a job that already finished.
	ErrJobTerminal = errors.New("job is in a terminal state")
)

// Store defines the persistence layer for jobs. It is the system of record;
// the scheduler only holds transient handles.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error)
	JobsByStatus(ctx context.Context, status model.Status) ([]*model.Job, error)
	DeleteJob(ctx context.Context, id int64) error

	// UpdateJob persists the caller-editable fields of a PENDING job.
	UpdateJob(ctx context.Context, j *model.Job) error

	// TransitionJob writes the lifecycle fields of j (status, consumed time,
	// timestamps, result, error) if the stored status is one of from.
	// It reports whether the write happened.
	TransitionJob(ctx context.Context, j *model.Job, from ...model.Status) (bool, error)

	// CancelJob moves a PENDING or RUNNING job to CANCELLED.
	CancelJob(ctx context.Context, id int64) (*model.Job, error)

	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	DeleteByStatus(ctx context.Context, status model.Status) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
