package ui

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/gosched/internal/store"
	"github.com/me/gosched/pkg/model"
)

type stubScheduler struct{ status model.SchedulerStatus }

func (s *stubScheduler) Start(context.Context)         {}
func (s *stubScheduler) Stop()                         {}
func (s *stubScheduler) AddJob(*model.Job) error       { return nil }
func (s *stubScheduler) RemoveJob(*model.Job)          {}
func (s *stubScheduler) Status() model.SchedulerStatus { return s.status }

func setupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func setupUI(t *testing.T, sched *stubScheduler) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	st := setupTestStore(t)
	u := New(st, sched, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route(Prefix, u.RegisterRoutes)
	return r, st
}

func get(t *testing.T, h http.Handler, path string, want int) string {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("GET %s: status=%d, want %d, body=%s", path, w.Code, want, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	return w.Body.String()
}

func addJob(t *testing.T, st *store.SQLiteStore, name string, alg model.Algorithm) *model.Job {
	t.Helper()
	j := model.JobCreate{Name: name, ExecutionTime: 4, Algorithm: alg}.NewJob(time.Now().UTC())
	if err := st.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func TestDashboard(t *testing.T) {
	sched := &stubScheduler{status: model.SchedulerStatus{
		Running:            true,
		ActiveJobs:         2,
		TotalPending:       5,
		PendingByAlgorithm: map[model.Algorithm]int{model.AlgorithmSJF: 5},
	}}
	h, st := setupUI(t, sched)
	addJob(t, st, "nightly-report", model.AlgorithmSJF)

	body := get(t, h, "/ui/", http.StatusOK)
	for _, want := range []string{"running", "2 active", "5 queued", "nightly-report", "PENDING"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboard_NoScheduler(t *testing.T) {
	st := setupTestStore(t)
	u := New(st, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route(Prefix, u.RegisterRoutes)

	body := get(t, r, "/ui/", http.StatusOK)
	if !strings.Contains(body, "No scheduler attached") {
		t.Error("expected no-scheduler notice")
	}
}

func TestJobList(t *testing.T) {
	h, st := setupUI(t, &stubScheduler{})
	addJob(t, st, "alpha", model.AlgorithmFIFO)
	beta := addJob(t, st, "beta", model.AlgorithmPriority)
	if _, err := st.CancelJob(context.Background(), beta.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	body := get(t, h, "/ui/jobs/", http.StatusOK)
	if !strings.Contains(body, "alpha") || !strings.Contains(body, "beta") {
		t.Errorf("job list missing jobs")
	}

	body = get(t, h, "/ui/jobs/?status=cancelled", http.StatusOK)
	if strings.Contains(body, "alpha") || !strings.Contains(body, "beta") {
		t.Errorf("status filter not applied")
	}
}

func TestJobDetail(t *testing.T) {
	h, st := setupUI(t, &stubScheduler{})
	j := addJob(t, st, "render <frames>", model.AlgorithmRoundRobin)

	body := get(t, h, "/ui/jobs/1", http.StatusOK)
	if !strings.Contains(body, "render &lt;frames&gt;") {
		t.Error("job name not escaped or missing")
	}
	if !strings.Contains(body, string(j.Algorithm)) {
		t.Error("algorithm missing")
	}

	get(t, h, "/ui/jobs/99", http.StatusNotFound)
	get(t, h, "/ui/jobs/abc", http.StatusNotFound)
}
