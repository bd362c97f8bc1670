package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/gosched/pkg/model"
)

type schedulerStatusResponse struct {
	model.SchedulerStatus
	JobCounts map[model.Status]int `json:"job_counts"`
}

// schedulerJobKinds maps the listing names under /scheduler/jobs to statuses.
var schedulerJobKinds = map[string]model.Status{
	"active":    model.StatusRunning,
	"pending":   model.StatusPending,
	"completed": model.StatusCompleted,
	"failed":    model.StatusFailed,
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("count jobs", "error", err)
		respondInternal(w, reqID, err)
		return
	}

	resp := schedulerStatusResponse{JobCounts: counts}
	if s.scheduler != nil {
		resp.SchedulerStatus = s.scheduler.Status()
	}
	respondOK(w, reqID, resp)
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireScheduler(w, reqID) {
		return
	}
	s.scheduler.Start(s.baseCtx)
	respondOK(w, reqID, s.scheduler.Status())
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireScheduler(w, reqID) {
		return
	}
	s.scheduler.Stop()
	respondOK(w, reqID, s.scheduler.Status())
}

func (s *Server) handleSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	kind := chi.URLParam(r, "kind")
	status, ok := schedulerJobKinds[kind]
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job listing", kind))
		return
	}

	opts, errs := listOptions(r)
	if len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query parameters", errs...))
		return
	}
	opts.Status = status

	jobs, total, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		s.logger.Error("list scheduler jobs", "kind", kind, "error", err)
		respondInternal(w, reqID, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	respondList(w, reqID, jobs, model.PageOf(opts, len(jobs), total))
}

// handleClearJobs deletes every job in the given terminal status.
func (s *Server) handleClearJobs(status model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestIDFromContext(r.Context())

		n, err := s.store.DeleteByStatus(r.Context(), status)
		if err != nil {
			s.logger.Error("clear jobs", "status", status, "error", err)
			respondInternal(w, reqID, err)
			return
		}
		s.logger.Info("jobs cleared", "status", status, "deleted", n)
		respondOK(w, reqID, map[string]int64{"deleted": n})
	}
}

func (s *Server) requireScheduler(w http.ResponseWriter, reqID string) bool {
	if s.scheduler != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable,
		&model.APIError{Code: model.ErrInternal, Message: "scheduler is not configured"})
	return false
}
