package model

import (
	"strings"
	"time"
)

// DefaultPriority is assigned when a job is created without a priority.
const DefaultPriority = 1

// Job is a unit of schedulable work with a declared priority, duration,
// and ordering algorithm.
type Job struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Priority      int       `json:"priority"`
	ExecutionTime int       `json:"execution_time"` // seconds of simulated work
	Algorithm     Algorithm `json:"algorithm"`
	Status        Status    `json:"status"`

	// Script is an optional JavaScript expression whose value becomes Result.
	Script string `json:"script,omitempty"`

	// Consumed counts the seconds of work already granted to the job across
	// round robin slices.
	Consumed int `json:"consumed"`

	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       string     `json:"result,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Clone returns a copy of the job that shares no pointers with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Remaining returns the seconds of work the job still needs.
func (j *Job) Remaining() int {
	if r := j.ExecutionTime - j.Consumed; r > 0 {
		return r
	}
	return 0
}

// Validate checks the caller-supplied fields of a job.
func (j *Job) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(j.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if j.ExecutionTime < 0 {
		errs = append(errs, FieldError{Field: "execution_time", Message: "must be >= 0"})
	}
	if !j.Algorithm.Valid() {
		errs = append(errs, FieldError{Field: "algorithm", Message: "must be one of fifo, round_robin, sjf, priority"})
	}
	return errs
}

// JobCreate is the request body for creating a job.
type JobCreate struct {
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Priority      *int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	ExecutionTime int       `json:"execution_time" yaml:"execution_time"`
	Algorithm     Algorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Script        string    `json:"script,omitempty" yaml:"script,omitempty"`
}

// NewJob builds a PENDING job from a create request, applying defaults.
func (c JobCreate) NewJob(now time.Time) *Job {
	j := &Job{
		Name:          c.Name,
		Description:   c.Description,
		Priority:      DefaultPriority,
		ExecutionTime: c.ExecutionTime,
		Algorithm:     c.Algorithm,
		Script:        c.Script,
		Status:        StatusPending,
		CreatedAt:     now,
	}
	if c.Priority != nil {
		j.Priority = *c.Priority
	}
	if j.Algorithm == "" {
		j.Algorithm = AlgorithmFIFO
	}
	return j
}

// JobUpdate is a partial update; nil fields are left unchanged.
type JobUpdate struct {
	Name          *string    `json:"name,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	ExecutionTime *int       `json:"execution_time,omitempty"`
	Algorithm     *Algorithm `json:"algorithm,omitempty"`
	Script        *string    `json:"script,omitempty"`
}

// Apply copies the set fields onto j and reports whether the algorithm changed.
func (u JobUpdate) Apply(j *Job) (rerouted bool) {
	if u.Name != nil {
		j.Name = *u.Name
	}
	if u.Description != nil {
		j.Description = *u.Description
	}
	if u.Priority != nil {
		j.Priority = *u.Priority
	}
	if u.ExecutionTime != nil {
		j.ExecutionTime = *u.ExecutionTime
	}
	if u.Script != nil {
		j.Script = *u.Script
	}
	if u.Algorithm != nil && *u.Algorithm != j.Algorithm {
		j.Algorithm = *u.Algorithm
		rerouted = true
	}
	return rerouted
}

// SchedulerStatus is a point-in-time snapshot of the scheduling engine.
type SchedulerStatus struct {
	Running            bool              `json:"is_running"`
	ActiveJobs         int               `json:"active_jobs"`
	PendingByAlgorithm map[Algorithm]int `json:"pending_by_algorithm"`
	TotalPending       int               `json:"total_pending"`
}
