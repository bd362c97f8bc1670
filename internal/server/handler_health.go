package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "not_configured",
		Store:     "ok",
	}
	if s.scheduler != nil {
		resp.Scheduler = "stopped"
		if s.scheduler.Status().Running {
			resp.Scheduler = "running"
		}
	}
	if _, err := s.store.CountByStatus(r.Context()); err != nil {
		s.logger.Warn("health check store", "error", err)
		resp.Status = "degraded"
		resp.Store = "error: " + err.Error()
	}
	respondOK(w, reqID, resp)
}
