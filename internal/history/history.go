// Package history keeps a sqlite record of plan runs and step timings, used
// by `loadseq history` and to learn step weights from past runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, WAL-friendly

	appErrors "loadseq/internal/errors"
	"loadseq/internal/logging"
	"loadseq/internal/plan"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	plan        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE TABLE IF NOT EXISTS step_runs (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step        TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_runs_run ON step_runs(run_id);
`

// Run is one recorded plan execution.
type Run struct {
	ID         string
	Plan       string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      int
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is a handle on the history database.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(on)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, appErrors.New(appErrors.CodeHistoryUnavailable, "history path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, appErrors.New(appErrors.CodeHistoryUnavailable, "create history directory", err)
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, appErrors.New(appErrors.CodeHistoryUnavailable, "open history db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, appErrors.New(appErrors.CodeHistoryUnavailable, "ping history db", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, appErrors.New(appErrors.CodeHistoryUnavailable, "create history schema", err)
	}

	return &Store{
		db:     db,
		path:   path,
		logger: logging.Component("history"),
		now:    time.Now,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// BeginRun records the start of a run and returns its id.
func (s *Store) BeginRun(ctx context.Context, planName string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, plan, status, started_at) VALUES (?, ?, ?, ?)`,
		id, planName, StatusRunning, s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	s.logger.Debug().Str("run", id).Str("plan", planName).Msg("run started")
	return id, nil
}

// RecordStep stores the outcome of one step.
func (s *Store) RecordStep(ctx context.Context, runID, step string, elapsed time.Duration, stepErr error) error {
	status, msg := outcome(stepErr)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_runs (run_id, step, duration_ns, status, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, step, elapsed.Nanoseconds(), status, msg, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert step run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := outcome(runErr)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, s.now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.New(appErrors.CodeInvalidArgument, fmt.Sprintf("unknown run %s", runID), nil)
	}
	s.logger.Debug().Str("run", runID).Str("status", status).Msg("run finished")
	return nil
}

func outcome(err error) (string, string) {
	if err != nil {
		return StatusFailed, err.Error()
	}
	return StatusOK, ""
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.plan, r.status, r.error, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM step_runs sr WHERE sr.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.Plan, &run.Status, &run.Error, &started, &finished, &run.Steps); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(0, started)
		if finished.Valid {
			run.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AverageDurations returns the mean duration of each step that succeeded in
// past runs of planName.
func (s *Store) AverageDurations(ctx context.Context, planName string) (map[string]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.step, AVG(sr.duration_ns)
		FROM step_runs sr
		JOIN runs r ON r.id = sr.run_id
		WHERE r.plan = ? AND sr.status = ?
		GROUP BY sr.step
	`, planName, StatusOK)
	if err != nil {
		return nil, fmt.Errorf("query step durations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string]time.Duration)
	for rows.Next() {
		var (
			step string
			avg  float64
		)
		if err := rows.Scan(&step, &avg); err != nil {
			return nil, fmt.Errorf("scan step duration: %w", err)
		}
		out[step] = time.Duration(avg)
	}
	return out, rows.Err()
}

// Weights converts average durations into step weights, in seconds. Steps
// that took no measurable time are left out so their declared weight stays.
func Weights(avg map[string]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(avg))
	for step, d := range avg {
		if d <= 0 {
			continue
		}
		out[step] = d.Seconds()
	}
	return out
}

// Recorder returns a plan.Recorder that stores step outcomes under runID.
// Storage failures are logged, never surfaced to the running plan.
func (s *Store) Recorder(runID string) plan.Recorder {
	return plan.RecorderFunc(func(ctx context.Context, step string, elapsed time.Duration, err error) {
		// Record even if the step was cancelled.
		if recErr := s.RecordStep(context.WithoutCancel(ctx), runID, step, elapsed, err); recErr != nil {
			s.logger.Warn().Err(recErr).Str("run", runID).Str("step", step).Msg("record step failed")
		}
	})
}
