package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/me/gosched/internal/config"
	"github.com/me/gosched/internal/scheduler"
	"github.com/me/gosched/internal/store"
	"github.com/me/gosched/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeScheduler records the calls the API makes.
type fakeScheduler struct {
	mu      sync.Mutex
	running bool
	added   []*model.Job
	removed []*model.Job
}

func (f *fakeScheduler) Start(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeScheduler) AddJob(j *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, j)
	return nil
}

func (f *fakeScheduler) RemoveJob(j *model.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, j)
}

func (f *fakeScheduler) Status() model.SchedulerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.SchedulerStatus{Running: f.running, TotalPending: len(f.added) - len(f.removed)}
}

func testServer(t *testing.T) (*Server, *store.SQLiteStore, *fakeScheduler) {
	t.Helper()
	st := testStore(t)
	sched := &fakeScheduler{}
	srv := New(config.DefaultServerConfig(), st, sched, testLogger(), WithRateLimit(0, 0))
	return srv, st, sched
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv http.Handler, method, path, body string, wantStatus int) envelope {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if w.Code == http.StatusNoContent {
		return env
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func decodeJob(t *testing.T, env envelope) model.Job {
	t.Helper()
	var j model.Job
	if err := json.Unmarshal(env.Data, &j); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return j
}

func createJob(t *testing.T, srv http.Handler, body string) model.Job {
	t.Helper()
	return decodeJob(t, do(t, srv, "POST", "/api/v1/jobs/", body, http.StatusCreated))
}

func TestDiscovery(t *testing.T) {
	srv, _, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("request_id = %q, want req_ prefix", env.RequestID)
	}

	var data discoveryResponse
	json.Unmarshal(env.Data, &data)
	if data.Name != "gosched API" {
		t.Errorf("name = %q", data.Name)
	}
	if len(data.Endpoints) != len(endpoints) {
		t.Errorf("endpoints count = %d, want %d", len(data.Endpoints), len(endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv, _, sched := testServer(t)
	sched.Start(context.Background())

	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)
	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" || data.Version != Version {
		t.Errorf("health = %+v", data)
	}
	if data.Scheduler != "running" {
		t.Errorf("scheduler = %q, want running", data.Scheduler)
	}
}

func TestCreateJob(t *testing.T) {
	srv, st, sched := testServer(t)

	j := createJob(t, srv, `{"name":"build","execution_time":5,"algorithm":"sjf","priority":4}`)
	if j.ID == 0 || j.Status != model.StatusPending {
		t.Errorf("created job = %+v", j)
	}
	if j.Algorithm != model.AlgorithmSJF || j.Priority != 4 {
		t.Errorf("algorithm=%s priority=%d", j.Algorithm, j.Priority)
	}

	stored, err := st.GetJob(context.Background(), j.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetJob: %v, %v", stored, err)
	}
	if len(sched.added) != 1 || sched.added[0].ID != j.ID {
		t.Fatalf("scheduler added = %v", sched.added)
	}
}

func TestCreateJob_Defaults(t *testing.T) {
	srv, _, _ := testServer(t)
	j := createJob(t, srv, `{"name":"plain","execution_time":1}`)
	if j.Algorithm != model.AlgorithmFIFO || j.Priority != model.DefaultPriority {
		t.Errorf("algorithm=%s priority=%d, want fifo/%d", j.Algorithm, j.Priority, model.DefaultPriority)
	}
}

func TestCreateJob_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad json", `not json`, ""},
		{"missing name", `{"execution_time":1}`, "name"},
		{"negative time", `{"name":"x","execution_time":-1}`, "execution_time"},
		{"unknown algorithm", `{"name":"x","execution_time":1,"algorithm":"lottery"}`, "algorithm"},
		{"script syntax", `{"name":"x","execution_time":1,"script":"job.name +"}`, "script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, sched := testServer(t)
			env := do(t, srv, "POST", "/api/v1/jobs/", tt.body, http.StatusBadRequest)
			if env.Status != "error" || env.Error == nil || env.Error.Code != model.ErrValidation {
				t.Fatalf("error = %+v", env.Error)
			}
			if tt.field != "" {
				found := false
				for _, d := range env.Error.Details {
					if d.Field == tt.field {
						found = true
					}
				}
				if !found {
					t.Errorf("details %+v missing field %q", env.Error.Details, tt.field)
				}
			}
			if len(sched.added) != 0 {
				t.Error("invalid job reached the scheduler")
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	srv, _, _ := testServer(t)
	j := createJob(t, srv, `{"name":"fetch","execution_time":2}`)

	got := decodeJob(t, do(t, srv, "GET", "/api/v1/jobs/"+itoa(j.ID), "", http.StatusOK))
	if got.Name != "fetch" {
		t.Errorf("name = %q", got.Name)
	}

	env := do(t, srv, "GET", "/api/v1/jobs/999", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v", env.Error)
	}
	do(t, srv, "GET", "/api/v1/jobs/abc", "", http.StatusBadRequest)
}

func TestListJobs(t *testing.T) {
	srv, _, _ := testServer(t)
	for _, name := range []string{"a", "b", "c"} {
		createJob(t, srv, `{"name":"`+name+`","execution_time":1}`)
	}

	env := do(t, srv, "GET", "/api/v1/jobs/?limit=2", "", http.StatusOK)
	var jobs []model.Job
	json.Unmarshal(env.Data, &jobs)
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if env.Pagination == nil || env.Pagination.Total != 3 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/jobs/?status=completed", "", http.StatusOK)
	if env.Pagination.Total != 0 {
		t.Errorf("completed total = %d, want 0", env.Pagination.Total)
	}
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}

	do(t, srv, "GET", "/api/v1/jobs/?status=bogus", "", http.StatusBadRequest)
	do(t, srv, "GET", "/api/v1/jobs/?limit=x", "", http.StatusBadRequest)
}

func TestUpdateJob(t *testing.T) {
	srv, _, sched := testServer(t)
	j := createJob(t, srv, `{"name":"edit","execution_time":3}`)

	got := decodeJob(t, do(t, srv, "PUT", "/api/v1/jobs/"+itoa(j.ID), `{"description":"new text"}`, http.StatusOK))
	if got.Description != "new text" {
		t.Errorf("description = %q", got.Description)
	}
	if len(sched.removed) != 0 {
		t.Errorf("description change rerouted the job")
	}

	got = decodeJob(t, do(t, srv, "PUT", "/api/v1/jobs/"+itoa(j.ID), `{"algorithm":"priority","priority":9}`, http.StatusOK))
	if got.Algorithm != model.AlgorithmPriority || got.Priority != 9 {
		t.Errorf("got %+v", got)
	}
	if len(sched.removed) != 1 || sched.removed[0].Algorithm != model.AlgorithmFIFO {
		t.Fatalf("removed = %v, want the fifo handle", sched.removed)
	}
	last := sched.added[len(sched.added)-1]
	if last.Algorithm != model.AlgorithmPriority || last.Priority != 9 {
		t.Errorf("re-added = %+v", last)
	}

	do(t, srv, "PUT", "/api/v1/jobs/"+itoa(j.ID), `{"algorithm":"lottery"}`, http.StatusBadRequest)
	do(t, srv, "PUT", "/api/v1/jobs/999", `{"name":"x"}`, http.StatusNotFound)
}

func TestUpdateJob_Reroute(t *testing.T) {
	tests := []struct {
		name   string
		create string
		update string
		want   bool
	}{
		{"fifo priority", `{"name":"a","execution_time":3}`, `{"priority":7}`, false},
		{"fifo execution time", `{"name":"a","execution_time":3}`, `{"execution_time":9}`, false},
		{"fifo to sjf", `{"name":"a","execution_time":3}`, `{"algorithm":"sjf"}`, true},
		{"sjf execution time", `{"name":"a","execution_time":3,"algorithm":"sjf"}`, `{"execution_time":1}`, true},
		{"sjf priority", `{"name":"a","execution_time":3,"algorithm":"sjf"}`, `{"priority":7}`, false},
		{"priority priority", `{"name":"a","execution_time":3,"algorithm":"priority"}`, `{"priority":7}`, true},
		{"round robin execution time", `{"name":"a","execution_time":3,"algorithm":"round_robin"}`, `{"execution_time":30}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, sched := testServer(t)
			j := createJob(t, srv, tt.create)
			do(t, srv, "PUT", "/api/v1/jobs/"+itoa(j.ID), tt.update, http.StatusOK)

			if got := len(sched.removed) == 1; got != tt.want {
				t.Errorf("rerouted = %v, want %v (removed %d, added %d)", got, tt.want, len(sched.removed), len(sched.added))
			}
			wantAdded := 1
			if tt.want {
				wantAdded = 2
			}
			if len(sched.added) != wantAdded {
				t.Errorf("added %d handles, want %d", len(sched.added), wantAdded)
			}
		})
	}
}

func TestUpdateJob_RejectsByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status model.Status
		want   int
	}{
		{"running", model.StatusRunning, http.StatusBadRequest},
		{"completed", model.StatusCompleted, http.StatusConflict},
		{"cancelled", model.StatusCancelled, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st, _ := testServer(t)
			j := createJob(t, srv, `{"name":"locked","execution_time":1}`)
			moveTo(t, st, j.ID, tt.status)
			do(t, srv, "PUT", "/api/v1/jobs/"+itoa(j.ID), `{"name":"renamed"}`, tt.want)
		})
	}
}

func TestDeleteJob(t *testing.T) {
	srv, st, sched := testServer(t)
	j := createJob(t, srv, `{"name":"gone","execution_time":1}`)

	do(t, srv, "DELETE", "/api/v1/jobs/"+itoa(j.ID), "", http.StatusNoContent)
	if len(sched.removed) != 1 || sched.removed[0].ID != j.ID {
		t.Errorf("removed = %v", sched.removed)
	}
	if got, _ := st.GetJob(context.Background(), j.ID); got != nil {
		t.Error("job still stored after delete")
	}
	do(t, srv, "DELETE", "/api/v1/jobs/"+itoa(j.ID), "", http.StatusNotFound)
}

func TestCancelJob(t *testing.T) {
	srv, st, sched := testServer(t)
	j := createJob(t, srv, `{"name":"stop me","execution_time":1}`)

	got := decodeJob(t, do(t, srv, "POST", "/api/v1/jobs/"+itoa(j.ID)+"/cancel", "", http.StatusOK))
	if got.Status != model.StatusCancelled || got.CompletedAt == nil {
		t.Errorf("cancelled job = %+v", got)
	}
	if len(sched.removed) != 1 {
		t.Errorf("removed = %v", sched.removed)
	}

	do(t, srv, "POST", "/api/v1/jobs/"+itoa(j.ID)+"/cancel", "", http.StatusBadRequest)

	done := createJob(t, srv, `{"name":"done","execution_time":1}`)
	moveTo(t, st, done.ID, model.StatusCompleted)
	do(t, srv, "POST", "/api/v1/jobs/"+itoa(done.ID)+"/cancel", "", http.StatusBadRequest)
	do(t, srv, "POST", "/api/v1/jobs/999/cancel", "", http.StatusNotFound)
}

func TestJobStatus(t *testing.T) {
	srv, st, _ := testServer(t)
	j := createJob(t, srv, `{"name":"lookup","execution_time":7}`)

	env := do(t, srv, "GET", "/api/v1/jobs/"+itoa(j.ID)+"/status", "", http.StatusOK)
	var data jobStatusResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != model.StatusPending || data.Remaining != 7 || data.Name != "lookup" {
		t.Errorf("status = %+v", data)
	}

	failed := createJob(t, srv, `{"name":"broken","execution_time":1}`)
	now := time.Now().UTC()
	failed.Status = model.StatusFailed
	failed.CompletedAt = &now
	failed.ErrorMessage = "disk full"
	if ok, err := st.TransitionJob(context.Background(), &failed, model.StatusPending); err != nil || !ok {
		t.Fatalf("TransitionJob: %v, %v", ok, err)
	}
	moveTo(t, st, j.ID, model.StatusRunning)
	j.Status = model.StatusCompleted
	j.CompletedAt = &now
	j.Result = "Job lookup completed successfully"
	if ok, err := st.TransitionJob(context.Background(), &j, model.StatusRunning); err != nil || !ok {
		t.Fatalf("TransitionJob: %v, %v", ok, err)
	}

	env = do(t, srv, "GET", "/api/v1/jobs/"+itoa(failed.ID)+"/status", "", http.StatusOK)
	data = jobStatusResponse{}
	json.Unmarshal(env.Data, &data)
	if data.Name != "broken" || data.Status != model.StatusFailed || data.ErrorMessage != "disk full" {
		t.Errorf("failed job status = %+v", data)
	}

	env = do(t, srv, "GET", "/api/v1/jobs/"+itoa(j.ID)+"/status", "", http.StatusOK)
	data = jobStatusResponse{}
	json.Unmarshal(env.Data, &data)
	if data.Result != "Job lookup completed successfully" || data.CompletedAt == nil {
		t.Errorf("completed job status = %+v", data)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	srv, st, sched := testServer(t)
	a := createJob(t, srv, `{"name":"a","execution_time":1}`)
	b := createJob(t, srv, `{"name":"b","execution_time":1}`)
	c := createJob(t, srv, `{"name":"c","execution_time":1}`)
	moveTo(t, st, a.ID, model.StatusCompleted)
	moveTo(t, st, b.ID, model.StatusFailed)

	env := do(t, srv, "POST", "/api/v1/scheduler/start", "", http.StatusOK)
	var status model.SchedulerStatus
	json.Unmarshal(env.Data, &status)
	if !status.Running || !sched.running {
		t.Error("scheduler not started")
	}

	env = do(t, srv, "GET", "/api/v1/scheduler/status", "", http.StatusOK)
	var full schedulerStatusResponse
	json.Unmarshal(env.Data, &full)
	if !full.Running {
		t.Error("status not running")
	}
	if full.JobCounts[model.StatusPending] != 1 || full.JobCounts[model.StatusCompleted] != 1 {
		t.Errorf("job_counts = %v", full.JobCounts)
	}

	kinds := map[string]int64{"pending": c.ID, "completed": a.ID, "failed": b.ID}
	for kind, id := range kinds {
		env := do(t, srv, "GET", "/api/v1/scheduler/jobs/"+kind, "", http.StatusOK)
		var jobs []model.Job
		json.Unmarshal(env.Data, &jobs)
		if len(jobs) != 1 || jobs[0].ID != id {
			t.Errorf("%s jobs = %+v", kind, jobs)
		}
	}
	do(t, srv, "GET", "/api/v1/scheduler/jobs/archived", "", http.StatusNotFound)

	env = do(t, srv, "POST", "/api/v1/scheduler/jobs/clear-completed", "", http.StatusOK)
	var cleared map[string]int64
	json.Unmarshal(env.Data, &cleared)
	if cleared["deleted"] != 1 {
		t.Errorf("clear-completed deleted = %d", cleared["deleted"])
	}
	do(t, srv, "POST", "/api/v1/scheduler/jobs/clear-failed", "", http.StatusOK)
	counts, _ := st.CountByStatus(context.Background())
	if counts[model.StatusCompleted] != 0 || counts[model.StatusFailed] != 0 {
		t.Errorf("counts after clear = %v", counts)
	}

	do(t, srv, "POST", "/api/v1/scheduler/stop", "", http.StatusOK)
	if sched.running {
		t.Error("scheduler still running")
	}
}

func TestSchedulerNotConfigured(t *testing.T) {
	srv := New(config.DefaultServerConfig(), testStore(t), nil, testLogger())
	do(t, srv, "POST", "/api/v1/scheduler/start", "", http.StatusServiceUnavailable)
	createJob(t, srv, `{"name":"stored only","execution_time":1}`)
}

func TestRateLimit(t *testing.T) {
	st := testStore(t)
	srv := New(config.DefaultServerConfig(), st, &fakeScheduler{}, testLogger(),
		WithRateLimit(rate.Every(time.Hour), 1))

	createJob(t, srv, `{"name":"first","execution_time":1}`)

	req := httptest.NewRequest("POST", "/api/v1/jobs/", strings.NewReader(`{"name":"second","execution_time":1}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if env.Error == nil || env.Error.Code != model.ErrRateLimited {
		t.Errorf("error = %+v", env.Error)
	}

	// Reads are never limited.
	do(t, srv, "GET", "/api/v1/jobs/", "", http.StatusOK)
}

func TestEndToEndWithEngine(t *testing.T) {
	st := testStore(t)
	cfg := scheduler.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	engine := scheduler.NewEngine(st, cfg, testLogger(), scheduler.WithTimeUnit(time.Millisecond))
	t.Cleanup(engine.Stop)

	srv := New(config.DefaultServerConfig(), st, engine, testLogger(), WithRateLimit(0, 0))
	do(t, srv, "POST", "/api/v1/scheduler/start", "", http.StatusOK)

	var ids []int64
	for _, name := range []string{"one", "two", "three"} {
		ids = append(ids, createJob(t, srv, `{"name":"`+name+`","execution_time":1}`).ID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, id := range ids {
		for {
			j := decodeJob(t, do(t, srv, "GET", "/api/v1/jobs/"+itoa(id), "", http.StatusOK))
			if j.Status == model.StatusCompleted {
				if !strings.Contains(j.Result, j.Name) {
					t.Errorf("result %q does not name job %q", j.Result, j.Name)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %d still %s", id, j.Status)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// moveTo forces a job into status through the store's lifecycle write.
func moveTo(t *testing.T, st *store.SQLiteStore, id int64, status model.Status) {
	t.Helper()
	j, err := st.GetJob(context.Background(), id)
	if err != nil || j == nil {
		t.Fatalf("GetJob(%d): %v, %v", id, j, err)
	}
	now := time.Now().UTC()
	j.Status = status
	if status.IsTerminal() {
		j.CompletedAt = &now
	}
	if ok, err := st.TransitionJob(context.Background(), j, model.StatusPending); err != nil || !ok {
		t.Fatalf("TransitionJob(%d → %s): %v, %v", id, status, ok, err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestDashboardMounted(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/ui/" {
		t.Fatalf("GET / = %d %q, want redirect to /ui/", w.Code, w.Header().Get("Location"))
	}

	req = httptest.NewRequest("GET", "/ui/", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Dashboard") {
		t.Errorf("GET /ui/ = %d", w.Code)
	}
}
