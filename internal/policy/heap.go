package policy

import (
	"container/heap"

	"github.com/me/gosched/pkg/model"
)

type entry struct {
	job *model.Job
	seq uint64
}

// jobHeap implements heap.Interface for jobs. Ties under before are broken by
// enqueue sequence, so equal jobs leave in arrival order.
type jobHeap struct {
	entries []entry
	before  func(a, b *model.Job) bool
}

func (h *jobHeap) Len() int { return len(h.entries) }

func (h *jobHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if h.before(a.job, b.job) {
		return true
	}
	if h.before(b.job, a.job) {
		return false
	}
	return a.seq < b.seq
}

func (h *jobHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

// Push is called by heap.Push; do not call directly.
func (h *jobHeap) Push(x any) {
	h.entries = append(h.entries, x.(entry))
}

// Pop is called by heap.Pop; do not call directly.
func (h *jobHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	h.entries = old[:n-1]
	return e
}

// ordered is a heap-backed policy shared by SJF and Priority.
type ordered struct {
	alg  model.Algorithm
	h    *jobHeap
	next uint64
	last entry // most recent Dequeue
}

func newOrdered(alg model.Algorithm, before func(a, b *model.Job) bool) *ordered {
	return &ordered{alg: alg, h: &jobHeap{before: before}}
}

func (o *ordered) Algorithm() model.Algorithm { return o.alg }

func (o *ordered) Enqueue(j *model.Job) {
	o.next++
	heap.Push(o.h, entry{job: j, seq: o.next})
}

func (o *ordered) Dequeue() *model.Job {
	if o.h.Len() == 0 {
		return nil
	}
	e := heap.Pop(o.h).(entry)
	o.last = e
	return e.job
}

// Requeue restores j with its original sequence number when it is the job
// last dequeued, keeping its place among equal keys. Any other job is
// enqueued as new.
func (o *ordered) Requeue(j *model.Job) {
	e := o.last
	o.last = entry{}
	if e.job == nil || e.job.ID != j.ID {
		o.Enqueue(j)
		return
	}
	e.job = j
	heap.Push(o.h, e)
}

func (o *ordered) Remove(j *model.Job) {
	for i, e := range o.h.entries {
		if e.job.ID == j.ID {
			heap.Remove(o.h, i)
			return
		}
	}
}

func (o *ordered) Len() int { return o.h.Len() }

// SJF serves the job with the shortest execution time first.
type SJF struct{ *ordered }

// NewSJF creates an empty shortest-job-first policy.
func NewSJF() *SJF {
	return &SJF{newOrdered(model.AlgorithmSJF, func(a, b *model.Job) bool {
		return a.ExecutionTime < b.ExecutionTime
	})}
}

// Priority serves the job with the numerically largest priority first.
type Priority struct{ *ordered }

// NewPriority creates an empty priority policy.
func NewPriority() *Priority {
	return &Priority{newOrdered(model.AlgorithmPriority, func(a, b *model.Job) bool {
		return a.Priority > b.Priority
	})}
}
