package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/models"
)

// PostgresStore keeps the credential and run history in PostgreSQL, for
// setups where several machines share one credential.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

var _ Backend = (*PostgresStore)(nil)

// OpenPostgres migrates the database at dsn and connects a pool to it.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runMigrations("migrations/postgres", dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (models.Credential, error) {
	rows, err := s.Pool.Query(ctx, `SELECT key, value FROM credentials`)
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

func (s *PostgresStore) Save(ctx context.Context, c models.Credential) error {
	kv := credentialToKV(c)
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		for _, k := range sortedKeys(kv) {
			_, err := tx.Exec(ctx,
				`INSERT INTO credentials (key, value, updated_at) VALUES ($1, $2, NOW())
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				k, kv[k],
			)
			if err != nil {
				return fmt.Errorf("saving %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) RecordRun(ctx context.Context, r Run) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO export_runs (id, started_at, finished_at, period, status,
		 listed, exported, skipped, failed, export_path, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.StartedAt, r.FinishedAt, r.Period, r.Status,
		r.Listed, r.Exported, r.Skipped, r.Failed, r.ExportPath, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, started_at, finished_at, period, status, listed, exported, skipped, failed,
		 export_path, error_message
		 FROM export_runs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Period, &r.Status,
			&r.Listed, &r.Exported, &r.Skipped, &r.Failed, &r.ExportPath, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}
