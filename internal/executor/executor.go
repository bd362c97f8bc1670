// Package executor runs a single job slice on its own goroutine and records
// the result in the job store.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/gosched/internal/script"
	"github.com/me/gosched/pkg/model"
)

// Store is the subset of the job store an executor writes to.
type Store interface {
	TransitionJob(ctx context.Context, j *model.Job, from ...model.Status) (bool, error)
}

// Outcome describes how an executor ended.
type Outcome int

const (
	// OutcomeNone means the executor has not finished yet.
	OutcomeNone Outcome = iota
	// OutcomeSkipped means the job had left PENDING before it could start.
	OutcomeSkipped
	OutcomeCompleted
	OutcomeFailed
	OutcomeCancelled
	// OutcomePreempted means a round robin slice ended with work left.
	OutcomePreempted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomePreempted:
		return "preempted"
	}
	return "none"
}

// StoppedMessage is recorded on jobs whose executor was stopped mid-run.
const StoppedMessage = "execution stopped"

const persistTimeout = 5 * time.Second

// Config controls how executors run their workload.
type Config struct {
	// TimeUnit is the wall-clock length of one second of declared work.
	TimeUnit time.Duration
	// StopTimeout bounds how long Stop waits for the goroutine to end.
	StopTimeout time.Duration
	// Work performs the job. Nil selects Sleep.
	Work WorkFunc
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		TimeUnit:    time.Second,
		StopTimeout: time.Second,
		Work:        Sleep,
	}
}

// Executor runs one slice of one job. A slice covering the rest of the job's
// work finishes it; a shorter one leaves it RUNNING for the next slice.
type Executor struct {
	job    *model.Job
	slice  int
	store  Store
	cfg    Config
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	running atomic.Bool

	mu      sync.Mutex
	outcome Outcome
	elapsed int
}

// New creates an executor granting slice seconds of work to j. The executor
// works on a copy of j; the caller's handle is never modified.
func New(j *model.Job, slice int, store Store, cfg Config, logger *slog.Logger) *Executor {
	if cfg.TimeUnit <= 0 {
		cfg.TimeUnit = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = time.Second
	}
	if cfg.Work == nil {
		cfg.Work = Sleep
	}
	if slice < 0 {
		slice = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		job:    j.Clone(),
		slice:  slice,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "executor", "job_id", j.ID),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// JobID returns the ID of the job being executed.
func (e *Executor) JobID() int64 { return e.job.ID }

// Slice returns the seconds of work granted to this executor.
func (e *Executor) Slice() int { return e.slice }

// Start launches the executor goroutine. Calling it more than once has no effect.
func (e *Executor) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.running.Store(true)
	go e.run()
}

// IsRunning reports whether the executor is still working or persisting its result.
func (e *Executor) IsRunning() bool { return e.running.Load() }

// Done is closed once the executor goroutine has ended.
func (e *Executor) Done() <-chan struct{} { return e.done }

// Outcome returns how the executor ended and the seconds of work it performed.
func (e *Executor) Outcome() (Outcome, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome, e.elapsed
}

// Stop cancels the workload and waits up to StopTimeout for the goroutine.
// It is safe to call more than once and before Start.
func (e *Executor) Stop() {
	e.cancel()
	if !e.started.Load() {
		return
	}
	t := time.NewTimer(e.cfg.StopTimeout)
	defer t.Stop()
	select {
	case <-e.done:
	case <-t.C:
		e.logger.Warn("executor did not stop in time", "timeout", e.cfg.StopTimeout)
	}
}

func (e *Executor) run() {
	defer close(e.done)
	outcome, elapsed := e.execute()

	e.mu.Lock()
	e.outcome, e.elapsed = outcome, elapsed
	e.mu.Unlock()
	e.running.Store(false)
}

func (e *Executor) execute() (Outcome, int) {
	j := e.job
	now := time.Now().UTC()

	// A job resuming after a round robin slice is already RUNNING.
	from := []model.Status{model.StatusPending}
	if j.Consumed > 0 {
		from = append(from, model.StatusRunning)
	}
	j.Status = model.StatusRunning
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	ok, err := e.persist(j, from...)
	if err != nil {
		e.logger.Error("mark job running", "error", err)
		return e.finish(model.StatusFailed, "", fmt.Sprintf("start job: %v", err), from...)
	}
	if !ok {
		e.logger.Info("job no longer pending, not starting")
		return OutcomeSkipped, 0
	}

	final := j.Consumed+e.slice >= j.ExecutionTime
	e.logger.Info("job started", "job_name", j.Name, "slice", e.slice, "final", final)

	d := time.Duration(e.slice) * e.cfg.TimeUnit
	err = Recover(e.cfg.Work, e.logger)(e.ctx, j.Clone(), d)
	if e.ctx.Err() != nil {
		return e.finish(model.StatusCancelled, "", StoppedMessage)
	}
	if err != nil {
		e.logger.Warn("job failed", "error", err)
		return e.finish(model.StatusFailed, "", err.Error())
	}

	if !final {
		j.Consumed += e.slice
		ok, err := e.persist(j, model.StatusRunning)
		if err != nil {
			e.logger.Error("record slice", "error", err)
		}
		if !ok && err == nil {
			// Cancelled while the slice ran.
			return OutcomeCancelled, e.slice
		}
		e.logger.Info("job slice finished", "consumed", j.Consumed, "execution_time", j.ExecutionTime)
		return OutcomePreempted, e.slice
	}

	result, err := e.result(j)
	if err != nil {
		if e.ctx.Err() != nil {
			return e.finish(model.StatusCancelled, "", StoppedMessage)
		}
		e.logger.Warn("job script failed", "error", err)
		return e.finish(model.StatusFailed, "", err.Error())
	}
	j.Consumed = j.ExecutionTime
	outcome, _ := e.finish(model.StatusCompleted, result, "")
	return outcome, e.slice
}

// result returns the script's value, or the default message when the job has
// no script or the script yields nothing.
func (e *Executor) result(j *model.Job) (string, error) {
	if strings.TrimSpace(j.Script) != "" {
		v, err := script.Evaluate(e.ctx, j.Script, j)
		if err != nil || v != "" {
			return v, err
		}
	}
	return fmt.Sprintf("Job %s completed successfully", j.Name), nil
}

// finish writes a terminal status. The write only applies while the stored
// job is in one of from (RUNNING by default); a job cancelled elsewhere keeps
// its CANCELLED status.
func (e *Executor) finish(status model.Status, result, errMsg string, from ...model.Status) (Outcome, int) {
	if len(from) == 0 {
		from = []model.Status{model.StatusRunning}
	}
	j := e.job
	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	j.Result = result
	j.ErrorMessage = errMsg

	ok, err := e.persist(j, from...)
	switch {
	case err != nil:
		e.logger.Error("persist job result", "status", status, "error", err)
	case !ok:
		e.logger.Info("job left RUNNING before it finished, keeping stored status", "status", status)
		return OutcomeCancelled, 0
	default:
		e.logger.Info("job finished", "status", status)
	}

	switch status {
	case model.StatusCompleted:
		return OutcomeCompleted, 0
	case model.StatusCancelled:
		return OutcomeCancelled, 0
	default:
		return OutcomeFailed, 0
	}
}

func (e *Executor) persist(j *model.Job, from ...model.Status) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	ok, err := e.store.TransitionJob(ctx, j, from...)
	if err != nil {
		return false, fmt.Errorf("persist job %d as %s: %w", j.ID, j.Status, err)
	}
	return ok, nil
}
