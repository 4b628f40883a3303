// Package journal persists a local reconcile log of uploaded assets. The
// pipeline performs no compensating rollback on failure; this log keeps the
// orphaned storage paths visible for out-of-band cleanup instead of silently
// discarding them.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"entryway/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Bump when the schema changes; existing databases must be cleared.
const schemaVersion = 1

// Asset states within a run's lifecycle.
const (
	AssetUploaded  = "uploaded"
	AssetCommitted = "committed"
	AssetOrphaned  = "orphaned"
)

// Run statuses mirrored from the pipeline's terminal states.
const (
	RunActive    = "active"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "journal.db"))
}

// OpenPath opens the journal at an explicit path (used in tests).
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
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
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("journal schema version %d, expected %d (delete %s to reset)", version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginRun records a new active run.
func (s *Store) BeginRun(ctx context.Context, runID, contestID, userID string) error {
	now := timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, contest_id, user_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, contestID, userID, RunActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordAsset journals a completed upload belonging to a run.
func (s *Store) RecordAsset(ctx context.Context, runID, stage, objectPath, assetID string) error {
	now := timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (run_id, stage, object_path, asset_id, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, objectPath, assetID, AssetUploaded, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// CompleteRun marks a run succeeded and commits its assets.
func (s *Store) CompleteRun(ctx context.Context, runID, submissionID string) error {
	return s.finishRun(ctx, runID, RunSucceeded, "", "", submissionID, AssetCommitted)
}

// FailRun marks a run failed at the given stage and flags its uploaded
// assets as orphaned for later reconciliation.
func (s *Store) FailRun(ctx context.Context, runID, failedStage, errorCategory string) error {
	return s.finishRun(ctx, runID, RunFailed, failedStage, errorCategory, "", AssetOrphaned)
}

func (s *Store) finishRun(ctx context.Context, runID, status, failedStage, errorCategory, submissionID, assetState string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := timestamp()
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, failed_stage = ?, error_category = ?, submission_id = ?, updated_at = ? WHERE id = ?`,
		status, failedStage, errorCategory, submissionID, now, runID,
	); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE assets SET state = ?, updated_at = ? WHERE run_id = ? AND state = ?`,
		assetState, now, runID, AssetUploaded,
	); err != nil {
		return fmt.Errorf("update assets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

// Orphan is one uploaded asset left behind by a failed run.
type Orphan struct {
	RunID      string
	ContestID  string
	Stage      string
	ObjectPath string
	AssetID    string
	CreatedAt  time.Time
}

// ListOrphans returns assets stranded by failed runs, oldest first.
func (s *Store) ListOrphans(ctx context.Context) ([]Orphan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.run_id, r.contest_id, a.stage, a.object_path, a.asset_id, a.created_at
         FROM assets a JOIN runs r ON r.id = a.run_id
         WHERE a.state = ? ORDER BY a.created_at ASC`,
		AssetOrphaned,
	)
	if err != nil {
		return nil, fmt.Errorf("query orphans: %w", err)
	}
	defer rows.Close()

	var orphans []Orphan
	for rows.Next() {
		var o Orphan
		var created string
		if err := rows.Scan(&o.RunID, &o.ContestID, &o.Stage, &o.ObjectPath, &o.AssetID, &created); err != nil {
			return nil, fmt.Errorf("scan orphan: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			o.CreatedAt = parsed
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
