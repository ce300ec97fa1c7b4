// Package runstore keeps the history of orchestrations in SQLite.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no run matches
var ErrNotFound = errors.New("run not found")

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared across queries
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run and its steps
func (s *Store) SaveRun(run *domain.Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, run_dir, project, kind, seed, dry_run, verdict, status, exit_code, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_dir = excluded.run_dir,
			verdict = excluded.verdict,
			status = excluded.status,
			exit_code = excluded.exit_code,
			error = excluded.error,
			finished_at = excluded.finished_at
	`,
		run.ID,
		run.RunDir,
		run.Project,
		string(run.Kind),
		run.Seed,
		run.DryRun,
		string(run.Verdict),
		string(run.Status),
		run.ExitCode,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM steps WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	for _, st := range run.Steps {
		_, err := tx.Exec(`
			INSERT INTO steps (run_id, step, exit_code, error, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, string(st.Step), st.ExitCode, st.Error, st.StartedAt, st.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("saving step %s: %w", st.Step, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, run_dir, project, kind, seed, dry_run, verdict, status, exit_code, error, started_at, finished_at`

// GetRun retrieves the latest run with the given id or run directory
func (s *Store) GetRun(ref string) (*domain.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ? OR run_dir = ? ORDER BY started_at DESC LIMIT 1`, ref, ref)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	run.Steps, err = s.listSteps(run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	Project string
	Status  domain.Status
	Limit   int
}

// ListRuns returns runs matching opts, newest first. Steps are not loaded.
func (s *Store) ListRuns(opts ListOptions) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Project != "" {
		query += " AND project = ?"
		args = append(args, opts.Project)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CountByStatus returns the number of runs per final status
func (s *Store) CountByStatus() (map[domain.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) listSteps(runID string) ([]domain.StepResult, error) {
	rows, err := s.db.Query(`SELECT step, exit_code, error, started_at, duration_ms FROM steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.StepResult
	for rows.Next() {
		var st domain.StepResult
		var step string
		var errText sql.NullString
		var startedAt sql.NullTime
		var durationMS int64
		if err := rows.Scan(&step, &st.ExitCode, &errText, &startedAt, &durationMS); err != nil {
			return nil, err
		}
		st.Step = domain.Step(step)
		st.Error = errText.String
		st.StartedAt = startedAt.Time
		st.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var runDir, verdict, errText sql.NullString
	var kind, status string
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &runDir, &run.Project, &kind, &run.Seed, &run.DryRun, &verdict, &status, &run.ExitCode, &errText, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.RunDir = runDir.String
	run.Kind = domain.Kind(kind)
	run.Verdict = domain.Status(verdict.String)
	run.Status = domain.Status(status)
	run.Error = errText.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}
