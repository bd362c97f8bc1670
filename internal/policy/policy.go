// Package policy implements the ordering policies that decide which queued
// job becomes eligible for dispatch next.
//
// Policies are not safe for concurrent use; the scheduler engine serializes
// every call under its coordinating lock.
package policy

import (
	"errors"
	"fmt"

	"github.com/me/gosched/pkg/model"
)

// DefaultQuantum is the round robin time slice, in seconds.
const DefaultQuantum = 10

// ErrUnknownAlgorithm is returned when no policy exists for an algorithm tag.
var ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")

// Policy orders PENDING jobs routed to one algorithm.
type Policy interface {
	// Algorithm returns the tag this policy serves.
	Algorithm() model.Algorithm

	// Enqueue adds a job to the policy.
	Enqueue(j *model.Job)

	// Dequeue returns the next eligible job, or nil when none is queued.
	Dequeue() *model.Job

	// Requeue puts back a job just returned by Dequeue at the position it
	// was dequeued from, so a failed dispatch does not cost it its turn.
	Requeue(j *model.Job)

	// Remove drops a queued job, matched by ID. Best-effort: FIFO ignores it.
	Remove(j *model.Job)

	// Len returns the number of queued jobs.
	Len() int
}

// Options holds construction parameters for policies.
type Options struct {
	Quantum int // round robin slice in seconds; <= 0 means DefaultQuantum
}

// DefaultOptions returns the construction defaults.
func DefaultOptions() Options {
	return Options{Quantum: DefaultQuantum}
}

// New constructs a fresh policy for the given algorithm.
func New(alg model.Algorithm, opts Options) (Policy, error) {
	switch alg {
	case model.AlgorithmFIFO:
		return NewFIFO(), nil
	case model.AlgorithmRoundRobin:
		return NewRoundRobin(opts.Quantum), nil
	case model.AlgorithmSJF:
		return NewSJF(), nil
	case model.AlgorithmPriority:
		return NewPriority(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}
