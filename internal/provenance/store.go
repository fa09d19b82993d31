package provenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run record does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the provenance database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("provenance db %s has schema version %d, this build expects %d; remove the file to recreate it", s.path, version, schemaVersion)
	}
	return nil
}

// Begin inserts a new run record in the running state.
func (s *Store) Begin(ctx context.Context, runID, model string, seed int64) (*Run, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, model, status, seed, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, model, StatusRunning, seed, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists the mutable fields of a run record.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	if !run.Status.Valid() {
		return fmt.Errorf("invalid run status %q", run.Status)
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            status = ?, snapshot_digest = ?, sample_count = ?,
            train_count = ?, val_count = ?, test_count = ?,
            new_metrics_json = ?, baseline_json = ?,
            should_promote = ?, bootstrap = ?, justification = ?,
            promoted_version = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		run.Status, run.SnapshotDigest, run.SampleCount,
		run.TrainCount, run.ValCount, run.TestCount,
		run.NewMetricsJSON, run.BaselineJSON,
		boolToInt(run.ShouldPromote), boolToInt(run.Bootstrap), run.Justification,
		run.PromotedVersion, run.ErrorMessage, run.UpdatedAt.Format(time.RFC3339Nano),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetByID returns the run with the given database ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanRun(row)
}

// GetByRunID returns the run with the given external run identifier.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE run_id = ?`, runID)
	return scanRun(row)
}

// List returns the most recent runs for the model, newest first. A zero limit
// means no limit; an empty model matches all models.
func (s *Store) List(ctx context.Context, model string, limit int) ([]*Run, error) {
	query := selectColumns
	args := []any{}
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastDecision returns the newest completed run for the model.
func (s *Store) LastDecision(ctx context.Context, model string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE model = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		model, StatusCompleted)
	return scanRun(row)
}

const selectColumns = `SELECT
    id, run_id, model, status, seed, snapshot_digest, sample_count,
    train_count, val_count, test_count, new_metrics_json, baseline_json,
    should_promote, bootstrap, justification, promoted_version,
    error_message, created_at, updated_at
FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var shouldPromote, bootstrap int
	var createdAt, updatedAt string
	err := row.Scan(
		&run.ID, &run.RunID, &run.Model, &run.Status, &run.Seed,
		&run.SnapshotDigest, &run.SampleCount,
		&run.TrainCount, &run.ValCount, &run.TestCount,
		&run.NewMetricsJSON, &run.BaselineJSON,
		&shouldPromote, &bootstrap, &run.Justification, &run.PromotedVersion,
		&run.ErrorMessage, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.ShouldPromote = shouldPromote != 0
	run.Bootstrap = bootstrap != 0
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
