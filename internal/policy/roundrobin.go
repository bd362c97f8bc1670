package policy

import "github.com/me/gosched/pkg/model"

// RoundRobin grants each job a slice of at most Quantum seconds before
// moving it to the back of the queue.
//
// The policy does not track consumed time itself. The caller reports each
// finished slice through NotifyExecuted, which records the elapsed time on
// the job. Without those calls the current job is handed out again on every
// Dequeue and never re-queued.
type RoundRobin struct {
	quantum   int
	queue     []*model.Job
	current   *model.Job
	remaining int
}

// NewRoundRobin creates a round robin policy. quantum <= 0 selects DefaultQuantum.
func NewRoundRobin(quantum int) *RoundRobin {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &RoundRobin{quantum: quantum}
}

func (r *RoundRobin) Algorithm() model.Algorithm { return model.AlgorithmRoundRobin }

// Quantum returns the configured slice length in seconds.
func (r *RoundRobin) Quantum() int { return r.quantum }

func (r *RoundRobin) Enqueue(j *model.Job) {
	r.queue = append(r.queue, j)
}

// Dequeue returns the current job while its slice has time left, otherwise
// the next queued job with a fresh slice of min(quantum, remaining work).
func (r *RoundRobin) Dequeue() *model.Job {
	if r.current != nil && r.remaining > 0 {
		return r.current
	}
	if len(r.queue) == 0 {
		return nil
	}

	j := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]

	r.remaining = min(r.quantum, j.Remaining())
	if r.remaining > 0 {
		r.current = j
	} else {
		// Nothing left to run; the job gets a single empty slice.
		r.current = nil
	}
	return j
}

// Slice returns the time left in the current slice, or 0 when no job holds one.
func (r *RoundRobin) Slice() int {
	if r.current == nil {
		return 0
	}
	return r.remaining
}

// Current returns the job holding the current slice, if any.
func (r *RoundRobin) Current() *model.Job { return r.current }

// NotifyExecuted records elapsed seconds of work for the current job. Once the
// slice is used up the job goes back to the tail of the queue if it still has
// work left; otherwise the current slot is cleared.
func (r *RoundRobin) NotifyExecuted(elapsed int) {
	if r.current == nil {
		return
	}
	r.remaining -= elapsed
	r.current.Consumed += elapsed
	if r.remaining > 0 {
		return
	}
	if r.current.Consumed < r.current.ExecutionTime {
		r.queue = append(r.queue, r.current)
	}
	r.current = nil
	r.remaining = 0
}

// Requeue puts j back at the head of the queue. The job holding the current
// slice stays where it is and is handed out again by the next Dequeue.
func (r *RoundRobin) Requeue(j *model.Job) {
	if r.current != nil && r.current.ID == j.ID {
		return
	}
	r.queue = append([]*model.Job{j}, r.queue...)
}

// Remove drops a queued job and releases the current slot when it matches.
func (r *RoundRobin) Remove(j *model.Job) {
	if r.current != nil && r.current.ID == j.ID {
		r.current = nil
		r.remaining = 0
	}
	for i, q := range r.queue {
		if q.ID == j.ID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *RoundRobin) Len() int { return len(r.queue) }
