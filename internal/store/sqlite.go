package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/gosched/pkg/model"

	_ "modernc.org/sqlite"
)

const jobColumns = `id, name, description, priority, execution_time, algorithm, status,
	script, consumed_seconds, created_at, started_at, completed_at, result, error_message`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// One connection: an in-memory database exists per connection, and SQLite
	// serializes writers anyway. Executors and the API share it.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.Job) error {
	s.logger.Debug("sql", "op", "insert", "table", "jobs", "name", j.Name)

	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.Status == "" {
		j.Status = model.StatusPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (name, description, priority, execution_time, algorithm, status,
		 script, consumed_seconds, created_at, started_at, completed_at, result, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.Name, j.Description, j.Priority, j.ExecutionTime, string(j.Algorithm), string(j.Status),
		j.Script, j.Consumed, formatTime(j.CreatedAt), formatTimePtr(j.StartedAt), formatTimePtr(j.CompletedAt),
		j.Result, j.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	j.ID = id
	return nil
}

// GetJob returns the job with the given ID, or nil if it does not exist.
func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "id", id)
	return scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "jobs", "status", opts.Status, "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(opts.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Finished jobs are listed most recent first.
	order := " ORDER BY id ASC"
	if opts.Status.IsTerminal() {
		order = " ORDER BY completed_at DESC, id DESC"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs`+where+order+` LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *SQLiteStore) JobsByStatus(ctx context.Context, status model.Status) ([]*model.Job, error) {
	s.logger.Debug("sql", "op", "list_by_status", "table", "jobs", "status", status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, id int64) error {
	s.logger.Debug("sql", "op", "delete", "table", "jobs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete job %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, j *model.Job) error {
	s.logger.Debug("sql", "op", "update", "table", "jobs", "id", j.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET name=?, description=?, priority=?, execution_time=?, algorithm=?, script=?
		 WHERE id=? AND status=?`,
		j.Name, j.Description, j.Priority, j.ExecutionTime, string(j.Algorithm), j.Script,
		j.ID, string(model.StatusPending),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}
	return s.explainMiss(ctx, j.ID)
}

func (s *SQLiteStore) TransitionJob(ctx context.Context, j *model.Job, from ...model.Status) (bool, error) {
	s.logger.Debug("sql", "op", "transition", "table", "jobs", "id", j.ID, "status", j.Status, "from", from)
	if len(from) == 0 {
		return false, fmt.Errorf("transition job %d: no source status given", j.ID)
	}

	args := []any{
		string(j.Status), j.Consumed,
		formatTimePtr(j.StartedAt), formatTimePtr(j.CompletedAt),
		j.Result, j.ErrorMessage, j.ID,
	}
	for _, st := range from {
		args = append(args, string(st))
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status=?, consumed_seconds=?, started_at=?, completed_at=?, result=?, error_message=?
		 WHERE id=? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("transition job %d: %w", j.ID, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) CancelJob(ctx context.Context, id int64) (*model.Job, error) {
	s.logger.Debug("sql", "op", "cancel", "table", "jobs", "id", id)

	now := formatTime(time.Now().UTC())
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status=?, completed_at=? WHERE id=? AND status IN (?, ?)`,
		string(model.StatusCancelled), now, id,
		string(model.StatusPending), string(model.StatusRunning),
	)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		current, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("cancel job %d: %w", id, ErrNotFound)
		}
		return nil, &model.InvalidTransitionError{ID: id, From: current.Status, To: model.StatusCancelled}
	}
	return s.GetJob(ctx, id)
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	s.logger.Debug("sql", "op", "count_by_status", "table", "jobs")

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) DeleteByStatus(ctx context.Context, status model.Status) (int64, error) {
	s.logger.Debug("sql", "op", "delete_by_status", "table", "jobs", "status", status)

	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, string(status))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// explainMiss turns a zero-row UPDATE of a PENDING job into a precise error.
func (s *SQLiteStore) explainMiss(ctx context.Context, id int64) error {
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case current == nil:
		return fmt.Errorf("update job %d: %w", id, ErrNotFound)
	case current.Status == model.StatusRunning:
		return fmt.Errorf("update job %d: %w", id, ErrJobRunning)
	default:
		return fmt.Errorf("update job %d (%s): %w", id, current.Status, ErrJobTerminal)
	}
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var j model.Job
	var algorithm, status, createdAt string
	var startedAt, completedAt *string

	err := row.Scan(
		&j.ID, &j.Name, &j.Description, &j.Priority, &j.ExecutionTime, &algorithm, &status,
		&j.Script, &j.Consumed, &createdAt, &startedAt, &completedAt, &j.Result, &j.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.Algorithm = model.Algorithm(algorithm)
	j.Status = model.Status(status)
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.StartedAt = parseTimePtr(startedAt)
	j.CompletedAt = parseTimePtr(completedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
