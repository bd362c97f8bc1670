package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/me/gosched/pkg/model"
)

// InterruptedMessage is recorded on jobs that were RUNNING when the previous
// process exited.
const InterruptedMessage = "interrupted by server restart"

// RecoveryStore is the part of the job store used at startup.
type RecoveryStore interface {
	JobsByStatus(ctx context.Context, status model.Status) ([]*model.Job, error)
	TransitionJob(ctx context.Context, j *model.Job, from ...model.Status) (bool, error)
}

// Recover re-queues PENDING jobs from the store and fails jobs a previous
// process left RUNNING. Call it before Start.
func (e *Engine) Recover(ctx context.Context, st RecoveryStore) (requeued, failed int, err error) {
	running, err := st.JobsByStatus(ctx, model.StatusRunning)
	if err != nil {
		return 0, 0, fmt.Errorf("list running jobs: %w", err)
	}
	for _, j := range running {
		now := time.Now().UTC()
		j.Status = model.StatusFailed
		j.CompletedAt = &now
		j.ErrorMessage = InterruptedMessage
		ok, err := st.TransitionJob(ctx, j, model.StatusRunning)
		if err != nil {
			return requeued, failed, fmt.Errorf("fail interrupted job %d: %w", j.ID, err)
		}
		if ok {
			failed++
		}
	}

	pending, err := st.JobsByStatus(ctx, model.StatusPending)
	if err != nil {
		return requeued, failed, fmt.Errorf("list pending jobs: %w", err)
	}
	for _, j := range pending {
		if err := e.AddJob(j); err != nil {
			e.logger.Warn("cannot requeue job", "job_id", j.ID, "algorithm", j.Algorithm, "error", err)
			continue
		}
		requeued++
	}

	e.logger.Info("recovered jobs", "requeued", requeued, "failed", failed)
	return requeued, failed, nil
}
