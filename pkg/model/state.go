package model

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a Job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidTransitions defines the allowed status transitions for Jobs.
var ValidTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range ValidTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus converts a case-insensitive status name to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Algorithm identifies the ordering policy a Job is routed through.
type Algorithm string

const (
	AlgorithmFIFO       Algorithm = "fifo"
	AlgorithmRoundRobin Algorithm = "round_robin"
	AlgorithmSJF        Algorithm = "sjf"
	AlgorithmPriority   Algorithm = "priority"
)

// Algorithms lists every supported algorithm in the engine's admission scan order.
var Algorithms = []Algorithm{
	AlgorithmFIFO,
	AlgorithmRoundRobin,
	AlgorithmSJF,
	AlgorithmPriority,
}

// String returns the string representation of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	for _, known := range Algorithms {
		if a == known {
			return true
		}
	}
	return false
}
