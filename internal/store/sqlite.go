package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/models"
)

// SQLiteStore keeps the credential and run history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Backend = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state dir for %s: %w", path, err)
	}

	if err := runMigrations("migrations/sqlite", "sqlite://"+path); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the pool's connections.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Load returns the stored credential, or auth.ErrNoCredential when empty.
func (s *SQLiteStore) Load(ctx context.Context) (models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return models.Credential{}, fmt.Errorf("loading credential: %w", err)
	}
	defer rows.Close()

	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return models.Credential{}, fmt.Errorf("scanning credential: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return models.Credential{}, fmt.Errorf("loading credential: %w", err)
	}
	if len(kv) == 0 {
		return models.Credential{}, auth.ErrNoCredential
	}
	return credentialFromKV(kv)
}

// Save replaces the stored credential in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, c models.Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning credential save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	kv := credentialToKV(c)
	for _, k := range sortedKeys(kv) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			k, kv[k],
		)
		if err != nil {
			return fmt.Errorf("saving %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credential: %w", err)
	}
	return nil
}

// RecordRun appends a run to the history.
func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, started_at, finished_at, period, status,
		 listed, exported, skipped, failed, export_path, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Period, r.Status, r.Listed, r.Exported, r.Skipped, r.Failed, r.ExportPath, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, period, status, listed, exported, skipped, failed,
		 export_path, error_message
		 FROM export_runs
		 ORDER BY started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var (
			r                 Run
			id, started, done string
		)
		if err := rows.Scan(&id, &started, &done, &r.Period, &r.Status, &r.Listed, &r.Exported,
			&r.Skipped, &r.Failed, &r.ExportPath, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing run id %q: %w", id, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", started, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, done); err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", done, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
