package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/me/gosched/internal/script"
	"github.com/me/gosched/pkg/model"
)

type jobStatusResponse struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Status       model.Status `json:"status"`
	Consumed     int          `json:"consumed"`
	Remaining    int          `json:"remaining"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Result       string       `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, errs := listOptions(r)
	if len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query parameters", errs...))
		return
	}

	jobs, total, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		respondInternal(w, reqID, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	respondList(w, reqID, jobs, model.PageOf(opts, len(jobs), total))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.JobCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}

	job := req.NewJob(time.Now().UTC())
	if errs := validateJob(job); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid job", errs...))
		return
	}

	if err := s.store.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("create job", "error", err)
		respondInternal(w, reqID, err)
		return
	}
	s.enqueue(job)

	s.logger.Info("job created", "job_id", job.ID, "algorithm", job.Algorithm)
	respondCreated(w, reqID, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	respondOK(w, reqID, job)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	var req model.JobUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	switch {
	case job.Status == model.StatusRunning:
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("cannot update a running job"))
		return
	case job.Status.IsTerminal():
		respondError(w, reqID, http.StatusConflict, model.NewConflictError("job has already finished"))
		return
	}

	old := job.Clone()
	req.Apply(job)

	if errs := validateJob(job); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid job", errs...))
		return
	}
	if err := s.store.UpdateJob(r.Context(), job); err != nil {
		respondStoreError(w, reqID, id, err)
		return
	}

	if s.scheduler != nil && needsReroute(old, job) {
		s.scheduler.RemoveJob(old)
		s.enqueue(job)
		s.logger.Info("job rerouted", "job_id", id, "from", old.Algorithm, "to", job.Algorithm)
	}
	respondOK(w, reqID, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}

	if s.scheduler != nil {
		s.scheduler.RemoveJob(job)
	}
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		respondStoreError(w, reqID, id, err)
		return
	}

	s.logger.Info("job deleted", "job_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	if !job.Status.CanTransitionTo(model.StatusCancelled) {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("only pending or running jobs can be cancelled, job is "+string(job.Status)))
		return
	}

	if s.scheduler != nil {
		s.scheduler.RemoveJob(job)
	}
	cancelled, err := s.store.CancelJob(r.Context(), id)
	var te *model.InvalidTransitionError
	if errors.As(err, &te) && te.From == model.StatusCancelled {
		// The stopped executor recorded the cancellation first.
		cancelled, err = s.store.GetJob(r.Context(), id)
	}
	if err != nil {
		respondStoreError(w, reqID, id, err)
		return
	}
	if cancelled == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}

	s.logger.Info("job cancelled", "job_id", id)
	respondOK(w, reqID, cancelled)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	respondOK(w, reqID, jobStatusResponse{
		ID:           job.ID,
		Name:         job.Name,
		Status:       job.Status,
		Consumed:     job.Consumed,
		Remaining:    job.Remaining(),
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
	})
}

// enqueue hands a copy of j to the scheduler. The engine keeps the copy as its
// handle, so the API never shares a job value with it.
func (s *Server) enqueue(j *model.Job) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.AddJob(j.Clone()); err != nil {
		s.logger.Error("queue job", "job_id", j.ID, "error", err)
	}
}

// needsReroute reports whether an edit changes where the job sits in its
// policy. FIFO order depends on arrival alone, and FIFO cannot drop a queued
// handle, so a FIFO job only moves when its algorithm changes.
func needsReroute(old, cur *model.Job) bool {
	if old.Algorithm != cur.Algorithm {
		return true
	}
	switch cur.Algorithm {
	case model.AlgorithmSJF, model.AlgorithmRoundRobin:
		return old.ExecutionTime != cur.ExecutionTime
	case model.AlgorithmPriority:
		return old.Priority != cur.Priority
	}
	return false
}

func validateJob(j *model.Job) []model.FieldError {
	errs := j.Validate()
	if err := script.Compile(j.Script); err != nil {
		errs = append(errs, model.FieldError{Field: "script", Message: err.Error()})
	}
	return errs
}
