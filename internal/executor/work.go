package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/me/gosched/pkg/model"
)

// WorkFunc performs d worth of work for job j. It must return promptly with
// ctx.Err() once ctx is cancelled.
type WorkFunc func(ctx context.Context, j *model.Job, d time.Duration) error

// Sleep is the default workload: it waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, _ *model.Job, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recover wraps fn so that a panic becomes an error, logged with a stack trace.
func Recover(fn WorkFunc, logger *slog.Logger) WorkFunc {
	return func(ctx context.Context, j *model.Job, d time.Duration) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job workload panicked",
					"job_id", j.ID,
					"job_name", j.Name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				retErr = fmt.Errorf("panic in job %s: %v", j.Name, r)
			}
		}()
		return fn(ctx, j, d)
	}
}
