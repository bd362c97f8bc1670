package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/me/gosched/internal/executor"
	"github.com/me/gosched/internal/policy"
	"github.com/me/gosched/pkg/model"
)

// Engine is the scheduling engine. A single mutex guards the policies, the
// active executors and the running flag; it is never held while waiting on
// a workload or a goroutine.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	policies *policy.Registry
	active   map[int64]*executor.Executor
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Scheduler = (*Engine)(nil)

// NewEngine creates a stopped engine.
func NewEngine(st Store, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}

	logger = logger.With("component", "scheduler")
	e := &Engine{
		store:    st,
		cfg:      cfg,
		logger:   logger,
		policies: policy.NewRegistry(policy.Options{Quantum: cfg.Quantum}, logger),
		active:   make(map[int64]*executor.Executor),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the admission loop. It is a no-op when the engine is
// already running. The loop ends on Stop or when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Info("scheduler already running")
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	e.logger.Info("scheduler started",
		"max_concurrent", e.cfg.MaxConcurrent,
		"poll_interval", e.cfg.PollInterval,
	)
	go e.loop(ctx, stopCh, doneCh)
}

// Stop halts the admission loop, stops every active executor and waits up to
// StopTimeout for the loop to end. Stopping a stopped engine does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	doneCh := e.doneCh
	execs := e.halt()
	e.mu.Unlock()

	stopAll(execs)

	t := time.NewTimer(e.cfg.StopTimeout)
	defer t.Stop()
	select {
	case <-doneCh:
		e.logger.Info("scheduler stopped")
	case <-t.C:
		e.logger.Warn("scheduler loop did not stop in time", "timeout", e.cfg.StopTimeout)
	}
}

// halt flips the engine to stopped and detaches all executors.
// Callers hold e.mu and stop the returned executors after unlocking.
func (e *Engine) halt() []*executor.Executor {
	e.running = false
	close(e.stopCh)
	execs := make([]*executor.Executor, 0, len(e.active))
	for id, ex := range e.active {
		execs = append(execs, ex)
		delete(e.active, id)
	}
	return execs
}

func stopAll(execs []*executor.Executor) {
	var wg sync.WaitGroup
	for _, ex := range execs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex.Stop()
		}()
	}
	wg.Wait()
}

// IsRunning reports whether the admission loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// AddJob routes j to the policy for its algorithm. The engine keeps j as its
// handle; callers must not modify it afterwards.
func (e *Engine) AddJob(j *model.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.policies.GetOrCreate(j.Algorithm)
	if err != nil {
		return fmt.Errorf("add job %d: %w", j.ID, err)
	}
	p.Enqueue(j)
	e.logger.Debug("job queued", "job_id", j.ID, "algorithm", j.Algorithm)
	return nil
}

// RemoveJob drops j from its policy (best-effort; FIFO ignores removals) and
// stops its executor if one is active.
func (e *Engine) RemoveJob(j *model.Job) {
	e.mu.Lock()
	if p, ok := e.policies.Get(j.Algorithm); ok {
		p.Remove(j)
	}
	ex := e.active[j.ID]
	delete(e.active, j.ID)
	e.mu.Unlock()

	if ex != nil {
		e.logger.Info("stopping executor for removed job", "job_id", j.ID)
		ex.Stop()
	}
}

// Status returns the running flag, the active executor count and the queued
// job counts per algorithm as reported by the policies themselves.
func (e *Engine) Status() model.SchedulerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending, total := e.policies.Pending()
	return model.SchedulerStatus{
		Running:            e.running,
		ActiveJobs:         len(e.active),
		PendingByAlgorithm: pending,
		TotalPending:       total,
	}
}

func (e *Engine) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scheduler stopping (context cancelled)")
			e.mu.Lock()
			var execs []*executor.Executor
			if e.running && e.doneCh == doneCh {
				execs = e.halt()
			}
			e.mu.Unlock()
			stopAll(execs)
			return
		case <-stopCh:
			e.logger.Info("scheduler stopping (stop called)")
			return
		case <-timer.C:
			wait := e.cfg.PollInterval
			if err := e.safeTick(ctx); err != nil {
				e.logger.Error("tick error", "error", err, "backoff", e.cfg.ErrorBackoff)
				wait = e.cfg.ErrorBackoff
			}
			timer.Reset(wait)
		}
	}
}

// safeTick runs Tick and turns a panic into an error so the loop survives it.
func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return e.Tick(ctx)
}

// Tick runs a single admission cycle: reap finished executors, then admit at
// most one job if the engine is below its concurrency ceiling. A stopped
// engine admits nothing.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.reap()
	if len(e.active) >= e.cfg.MaxConcurrent {
		return nil
	}
	e.admit(ctx)
	return nil
}

// reap drops executors that have finished and reports round robin slices
// back to the policy.
func (e *Engine) reap() {
	for id, ex := range e.active {
		if ex.IsRunning() {
			continue
		}
		delete(e.active, id)
		outcome, elapsed := ex.Outcome()
		e.logger.Debug("executor reaped", "job_id", id, "outcome", outcome)

		rr := e.roundRobin()
		if rr == nil {
			continue
		}
		cur := rr.Current()
		if cur == nil || cur.ID != id {
			continue
		}
		switch outcome {
		case executor.OutcomeCompleted, executor.OutcomePreempted:
			rr.NotifyExecuted(elapsed)
		default:
			rr.Remove(cur)
		}
	}
}

// admit scans the policies in fixed order and starts an executor for the
// first eligible job. Jobs that left PENDING or moved to another algorithm
// since they were queued are dropped and the same policy is asked again; a
// job whose status cannot be read is put back in its place for a later cycle
// and the scan moves on.
func (e *Engine) admit(ctx context.Context) {
	e.policies.Each(func(p policy.Policy) bool {
		for {
			j := p.Dequeue()
			if j == nil {
				return true
			}
			// A round robin job keeps being handed out while its slice runs.
			if _, busy := e.active[j.ID]; busy {
				return true
			}

			ok, err := e.eligible(ctx, p, j)
			if err != nil {
				e.logger.Error("check job before dispatch", "job_id", j.ID, "algorithm", p.Algorithm(), "error", err)
				p.Requeue(j)
				return true
			}
			if !ok {
				e.logger.Info("skipping stale job", "job_id", j.ID, "algorithm", p.Algorithm())
				if e.holdsSlice(p, j) {
					p.Remove(j)
				}
				continue
			}

			e.dispatch(p, j)
			return false
		}
	})
}

func (e *Engine) dispatch(p policy.Policy, j *model.Job) {
	slice := j.Remaining()
	if rr, ok := p.(*policy.RoundRobin); ok {
		slice = rr.Slice()
	}
	ex := executor.New(j, slice, e.store, e.cfg.Executor, e.logger)
	e.active[j.ID] = ex
	ex.Start()
	e.logger.Info("job admitted", "job_id", j.ID, "algorithm", p.Algorithm(), "slice", ex.Slice(), "active", len(e.active))
}

// eligible re-reads j from the store and refreshes the handle. A job may run
// when it is still routed to p and is PENDING, or RUNNING between round robin
// slices. A handle left behind in FIFO after the job moved to another
// algorithm is stale.
func (e *Engine) eligible(ctx context.Context, p policy.Policy, j *model.Job) (bool, error) {
	stored, err := e.store.GetJob(ctx, j.ID)
	if err != nil {
		return false, err
	}
	if stored == nil || stored.Algorithm != p.Algorithm() {
		return false, nil
	}
	// Pick up edits made while the job was queued.
	j.Name = stored.Name
	j.Description = stored.Description
	j.Priority = stored.Priority
	j.ExecutionTime = stored.ExecutionTime
	j.Script = stored.Script

	switch stored.Status {
	case model.StatusPending:
		return true, nil
	case model.StatusRunning:
		return j.Consumed > 0, nil
	}
	return false, nil
}

func (e *Engine) roundRobin() *policy.RoundRobin {
	p, ok := e.policies.Get(model.AlgorithmRoundRobin)
	if !ok {
		return nil
	}
	rr, _ := p.(*policy.RoundRobin)
	return rr
}

// holdsSlice reports whether j is the round robin job holding the current slice.
func (e *Engine) holdsSlice(p policy.Policy, j *model.Job) bool {
	rr, ok := p.(*policy.RoundRobin)
	if !ok {
		return false
	}
	cur := rr.Current()
	return cur != nil && cur.ID == j.ID
}
