package policy

import "github.com/me/gosched/pkg/model"

// FIFO serves jobs in strict arrival order.
type FIFO struct {
	queue []*model.Job
}

// NewFIFO creates an empty FIFO policy.
func NewFIFO() *FIFO {
	return &FIFO{}
}

func (f *FIFO) Algorithm() model.Algorithm { return model.AlgorithmFIFO }

func (f *FIFO) Enqueue(j *model.Job) {
	f.queue = append(f.queue, j)
}

func (f *FIFO) Dequeue() *model.Job {
	if len(f.queue) == 0 {
		return nil
	}
	j := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return j
}

func (f *FIFO) Requeue(j *model.Job) {
	f.queue = append([]*model.Job{j}, f.queue...)
}

// Remove is a no-op. A cancelled FIFO job stays queued and is filtered out by
// the engine's status check at dispatch time.
func (f *FIFO) Remove(*model.Job) {}

func (f *FIFO) Len() int { return len(f.queue) }
