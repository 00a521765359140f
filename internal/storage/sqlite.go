// Package storage archives run reports and observations in sqlite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fredcli/pkg/contracts/domain"
)

// ErrNotFound is returned when a series has no archived run
var ErrNotFound = errors.New("not found")

// Store is the archive used by the pipeline and the status server
type Store interface {
	SaveRun(ctx context.Context, report *domain.RunReport, obs []domain.Observation, derived []float64) error
	LatestRun(ctx context.Context, series string) (*domain.RunReport, error)
	ListRuns(ctx context.Context, series string, limit int) ([]domain.RunReport, error)
	Observations(ctx context.Context, series string) ([]domain.ArchivedObservation, error)
	Close() error
}

// SQLiteStore implements Store on the pure Go modernc.org/sqlite driver
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	series          TEXT NOT NULL,
	status          TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	raw_path        TEXT,
	processed_path  TEXT,
	raw_bytes       INTEGER NOT NULL DEFAULT 0,
	row_count       INTEGER NOT NULL DEFAULT 0,
	dropped_before  INTEGER NOT NULL DEFAULT 0,
	dropped_missing INTEGER NOT NULL DEFAULT 0,
	baseline        REAL,
	error           TEXT,
	error_type      TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_series_started ON runs(series, started_at);
CREATE TABLE IF NOT EXISTS observations (
	series           TEXT NOT NULL,
	observation_date TEXT NOT NULL,
	value            REAL NOT NULL,
	derived          REAL,
	run_id           TEXT NOT NULL,
	PRIMARY KEY (series, observation_date)
);`

// NewSQLite opens (or creates) the database at path and applies the schema
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent series runs queue on the pool
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		slog.Warn("could not set WAL mode", slog.String("error", err.Error()))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun records a run. On success the series' observations are replaced by obs.
// derived is parallel to obs and may be nil.
func (s *SQLiteStore) SaveRun(ctx context.Context, report *domain.RunReport, obs []domain.Observation, derived []float64) (err error) {
	if report == nil {
		return errors.New("nil run report")
	}
	if derived != nil && len(derived) != len(obs) {
		return fmt.Errorf("derived values (%d) do not match observations (%d)", len(derived), len(obs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var baseline sql.NullFloat64
	if report.Baseline != 0 {
		baseline = sql.NullFloat64{Float64: report.Baseline, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, series, status, started_at, finished_at, raw_path, processed_path,
		 raw_bytes, row_count, dropped_before, dropped_missing, baseline, error, error_type)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		report.RunID, report.Series, string(report.Status),
		formatTime(report.StartedAt), formatTime(report.FinishedAt),
		report.RawPath, report.ProcessedPath,
		report.RawBytes, report.Rows, report.DroppedBefore, report.DroppedMissing,
		baseline, report.Error, report.ErrorType,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if report.Succeeded() && len(obs) > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM observations WHERE series = ?`, report.Series); err != nil {
			return fmt.Errorf("clear observations: %w", err)
		}
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, `INSERT INTO observations
			(series, observation_date, value, derived, run_id) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, o := range obs {
			var d sql.NullFloat64
			if derived != nil {
				d = sql.NullFloat64{Float64: derived[i], Valid: true}
			}
			if _, err = stmt.ExecContext(ctx, report.Series, o.Date.Format("2006-01-02"), o.Value, d, report.RunID); err != nil {
				return fmt.Errorf("insert observation %s: %w", o.Date.Format("2006-01-02"), err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, series, status, started_at, finished_at, raw_path, processed_path,
	raw_bytes, row_count, dropped_before, dropped_missing, baseline, error, error_type`

// LatestRun returns the most recent run of series
func (s *SQLiteStore) LatestRun(ctx context.Context, series string) (*domain.RunReport, error) {
	runs, err := s.ListRuns(ctx, series, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run for series %q: %w", series, ErrNotFound)
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs of series, newest first; limit <= 0 means no limit
func (s *SQLiteStore) ListRuns(ctx context.Context, series string, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE series = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		series, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RunReport, 0)
	for rows.Next() {
		var (
			r                 domain.RunReport
			status            string
			started, finished string
			rawPath, procPath sql.NullString
			errMsg, errType   sql.NullString
			baseline          sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &r.Series, &status, &started, &finished, &rawPath, &procPath,
			&r.RawBytes, &r.Rows, &r.DroppedBefore, &r.DroppedMissing, &baseline, &errMsg, &errType); err != nil {
			return nil, err
		}
		r.Status = domain.RunStatus(status)
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.RawPath = rawPath.String
		r.ProcessedPath = procPath.String
		r.Baseline = baseline.Float64
		r.Error = errMsg.String
		r.ErrorType = errType.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Observations returns the archived observations of series in date order
func (s *SQLiteStore) Observations(ctx context.Context, series string) ([]domain.ArchivedObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series, observation_date, value, derived, run_id FROM observations
		 WHERE series = ? ORDER BY observation_date`, series)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ArchivedObservation, 0)
	for rows.Next() {
		var (
			o       domain.ArchivedObservation
			date    string
			derived sql.NullFloat64
		)
		if err := rows.Scan(&o.Series, &date, &o.Value, &derived, &o.RunID); err != nil {
			return nil, err
		}
		if o.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad archived date %q: %w", date, err)
		}
		if derived.Valid {
			v := derived.Float64
			o.Derived = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout has fixed width so stored timestamps sort chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
