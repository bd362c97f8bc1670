// Package ui serves a read-only HTML dashboard over the job store and the
// scheduler.
package ui

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/gosched/internal/scheduler"
	"github.com/me/gosched/internal/store"
	"github.com/me/gosched/pkg/model"
)

const pageSize = 20

// UI handles the web user interface.
type UI struct {
	store     store.Store
	scheduler scheduler.Scheduler // may be nil
	logger    *slog.Logger
	startTime time.Time
}

// New creates a new UI handler.
func New(st store.Store, sched scheduler.Scheduler, logger *slog.Logger) *UI {
	return &UI{
		store:     st,
		scheduler: sched,
		logger:    logger.With("component", "ui"),
		startTime: time.Now(),
	}
}

// HandleDashboard renders scheduler state, job counts and the latest jobs.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := ui.store.CountByStatus(r.Context())
	if err != nil {
		ui.renderError(w, "Failed to count jobs", err)
		return
	}
	recent, total, err := ui.store.ListJobs(r.Context(), model.ListOptions{Limit: 10})
	if err != nil {
		ui.renderError(w, "Failed to list jobs", err)
		return
	}

	var status model.SchedulerStatus
	if ui.scheduler != nil {
		status = ui.scheduler.Status()
	}

	data := map[string]any{
		"Title":      "Dashboard - gosched",
		"Scheduler":  status,
		"Configured": ui.scheduler != nil,
		"Algorithms": model.Algorithms,
		"Counts":     counts,
		"Statuses":   []model.Status{model.StatusPending, model.StatusRunning, model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
		"Total":      total,
		"RecentJobs": recent,
		"Uptime":     time.Since(ui.startTime).Round(time.Second).String(),
	}
	ui.render(w, "dashboard", data)
}

// HandleJobList renders a page of jobs, optionally filtered by status.
func (ui *UI) HandleJobList(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)
	jobs, total, err := ui.store.ListJobs(r.Context(), opts)
	if err != nil {
		ui.renderError(w, "Failed to list jobs", err)
		return
	}

	data := map[string]any{
		"Title":      "Jobs - gosched",
		"Jobs":       jobs,
		"Status":     string(opts.Status),
		"Pagination": ui.buildPagination(opts, total),
	}
	ui.render(w, "jobs", data)
}

// HandleJobDetail renders one job.
func (ui *UI) HandleJobDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		ui.renderNotFound(w, "Job not found")
		return
	}
	job, err := ui.store.GetJob(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load job", err)
		return
	}
	if job == nil {
		ui.renderNotFound(w, "Job not found")
		return
	}

	data := map[string]any{
		"Title": job.Name + " - gosched",
		"Job":   job,
	}
	ui.render(w, "job", data)
}

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.ListOptions{Limit: pageSize}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if st, err := model.ParseStatus(s); err == nil {
			opts.Status = st
		}
	}
	return opts
}

func (ui *UI) buildPagination(opts model.ListOptions, total int) map[string]any {
	return map[string]any{
		"Total":      total,
		"Offset":     opts.Offset,
		"HasMore":    opts.Offset+opts.Limit < total,
		"HasPrev":    opts.Offset > 0,
		"NextOffset": opts.Offset + opts.Limit,
		"PrevOffset": max(0, opts.Offset-opts.Limit),
	}
}

func (ui *UI) render(w http.ResponseWriter, name string, data map[string]any) {
	ui.renderStatus(w, http.StatusOK, name, data)
}

func (ui *UI) renderStatus(w http.ResponseWriter, status int, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, name, data); err != nil {
		ui.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	ui.renderStatus(w, http.StatusInternalServerError, "error", map[string]any{
		"Title":   "Error - gosched",
		"Message": message,
	})
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	ui.renderStatus(w, http.StatusNotFound, "error", map[string]any{
		"Title":   "Not Found - gosched",
		"Message": message,
	})
}
