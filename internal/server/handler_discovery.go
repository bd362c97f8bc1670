package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

var endpoints = []endpointInfo{
	{"/api/v1/jobs", []string{"GET", "POST"}, "List jobs (?limit, ?offset, ?status) or submit a job"},
	{"/api/v1/jobs/{id}", []string{"GET", "PUT", "DELETE"}, "Single job operations. PUT only applies to pending jobs"},
	{"/api/v1/jobs/{id}/cancel", []string{"POST"}, "Cancel a pending or running job"},
	{"/api/v1/jobs/{id}/status", []string{"GET"}, "Job status and consumed time"},
	{"/api/v1/scheduler/status", []string{"GET"}, "Engine state, queued jobs per algorithm and job counts"},
	{"/api/v1/scheduler/start", []string{"POST"}, "Start the admission loop"},
	{"/api/v1/scheduler/stop", []string{"POST"}, "Stop the admission loop and running jobs"},
	{"/api/v1/scheduler/jobs/{kind}", []string{"GET"}, "Jobs by kind: active, pending, completed, failed"},
	{"/api/v1/scheduler/jobs/clear-completed", []string{"POST"}, "Delete completed jobs"},
	{"/api/v1/scheduler/jobs/clear-failed", []string{"POST"}, "Delete failed jobs"},
	{"/api/v1/health", []string{"GET"}, "Server health and version"},
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "gosched API",
		Version:     "v1",
		Description: "Job scheduling engine with fifo, round_robin, sjf and priority queues",
		Endpoints:   endpoints,
	})
}
