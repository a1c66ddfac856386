// Package journal stores the outcome of program runs in a SQLite database so
// that past exceptions can be inspected after the process is gone.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
	"github.com/parac-dev/parac-runtime/wireformat"
)

// Compile-time interface compliance check
var _ ports.RunJournal = (*Journal)(nil)

// Journal is a run journal backed by SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path, ensuring that the
// parent directory exists, and initializes its schema.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &parac.FileAccessError{Path: dir, Reason: "failed to create journal directory", Err: err}
		}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, &parac.FileAccessError{Path: path, Reason: "failed to open journal", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &parac.FileAccessError{Path: path, Reason: "failed to open journal", Err: err}
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, &parac.InternalError{Operation: "journal schema", Err: err}
	}
	return &Journal{db: db}, nil
}

// dsn builds a SQLite URI for path. Escaping keeps "?" and "#" in file
// names from being read as URI syntax.
func dsn(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(path),
		RawQuery: "_journal_mode=WAL&_busy_timeout=5000",
	}
	if filepath.IsAbs(path) && !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

// InitSchema creates the runs table.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			program TEXT NOT NULL,
			project TEXT,
			variant TEXT NOT NULL,
			is_exception INTEGER NOT NULL DEFAULT 0,
			exception TEXT,
			traceback TEXT,
			status_code INTEGER NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_program ON runs(program, id);
	`)
	return err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores rec and returns the id it was stored under. A zero
// Timestamp is replaced by the current time. The payload column holds the
// entry point in its JSON wire format.
func (j *Journal) Record(ctx context.Context, rec entities.RunRecord) (int64, error) {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	variant := rec.Variant
	if variant == "" {
		variant = entities.VariantExit
	}

	var payload sql.NullString
	if variant == entities.VariantExit {
		data, err := wireformat.MarshalEntryPoint(entities.ExitStatusToEntryPoint(rec.Status))
		if err != nil {
			return 0, err
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (timestamp, program, project, variant, is_exception, exception, traceback, status_code, exit_code, duration_ms, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), rec.Program, nullString(rec.Project), variant,
		rec.Status.IsException, nullString(rec.Status.Exception), nullString(rec.Status.Traceback),
		rec.Status.StatusCode, rec.ExitCode, rec.Duration.Milliseconds(), payload,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run of %s: %w", rec.Program, err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]entities.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, timestamp, program, project, variant, is_exception, exception, traceback, status_code, exit_code, duration_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []entities.RunRecord
	for rows.Next() {
		var (
			rec                 entities.RunRecord
			tsMillis, durMillis int64
			project, exc, tb    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &tsMillis, &rec.Program, &project, &rec.Variant,
			&rec.Status.IsException, &exc, &tb, &rec.Status.StatusCode, &rec.ExitCode, &durMillis); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMillis)
		rec.Duration = time.Duration(durMillis) * time.Millisecond
		rec.Project = project.String
		rec.Status.Exception = exc.String
		rec.Status.Traceback = tb.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Payload returns the stored wire form of the entry point of run id.
func (j *Journal) Payload(ctx context.Context, id int64) (entities.EntryPoint, error) {
	var payload sql.NullString
	err := j.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, parac.Errorf(parac.CodeUserInput, "no run with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}
	if !payload.Valid {
		return nil, parac.Errorf(parac.CodeInternal, "run %d has no payload", id)
	}
	return wireformat.UnmarshalEntryPoint([]byte(payload.String))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
