package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		priority       INTEGER NOT NULL DEFAULT 1,
		execution_time INTEGER NOT NULL,
		algorithm      TEXT NOT NULL DEFAULT 'fifo',
		status         TEXT NOT NULL DEFAULT 'PENDING',
		created_at     TEXT NOT NULL,
		started_at     TEXT,
		completed_at   TEXT,
		result         TEXT NOT NULL DEFAULT '',
		error_message  TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_algorithm ON jobs(algorithm)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_completed ON jobs(status, completed_at)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
}{
	{
		table:    "jobs",
		column:   "script",
		alterSQL: "ALTER TABLE jobs ADD COLUMN script TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "jobs",
		column:   "consumed_seconds",
		alterSQL: "ALTER TABLE jobs ADD COLUMN consumed_seconds INTEGER NOT NULL DEFAULT 0",
	},
}

// migrate executes the schema DDL and the idempotent column additions.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
