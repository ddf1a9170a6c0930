// Package store persists the API credential between runs and keeps a history
// of export runs.
package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/config"
	"github.com/claude/stravasummary/internal/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Run is one execution of the export, as recorded in the run history.
type Run struct {
	ID           uuid.UUID `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Period       string    `json:"period"`
	Status       string    `json:"status"`
	Listed       int       `json:"listed"`
	Exported     int       `json:"exported"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	ExportPath   string    `json:"export_path"`
	ErrorMessage *string   `json:"error_message"`
}

// Run statuses.
const (
	RunSuccess = "success"
	RunError   = "error"
)

// Backend is a credential store that can also keep run history.
type Backend interface {
	auth.Store
	RecordRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Open returns the backend selected by cfg.Driver, with its schema migrated.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		log.Debug("opening sqlite store", "path", cfg.Path)
		return OpenSQLite(cfg.Path)
	case config.DriverPostgres:
		log.Debug("opening postgres store")
		return OpenPostgres(ctx, cfg.DSN)
	case config.DriverDotenv:
		log.Debug("using dotenv store", "path", cfg.Path)
		return NewDotenv(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// runMigrations applies the embedded migrations under dir to the database at url.
func runMigrations(dir, url string) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Credential keys, shared by every backend. They match the classic .env layout.
const (
	keyClientID     = "CLIENT_ID"
	keyClientSecret = "CLIENT_SECRET"
	keyAccessToken  = "ACCESS_TOKEN"
	keyRefreshToken = "REFRESH_TOKEN"
	keyExpiresAt    = "EXPIRES_AT"
	keyTokenType    = "TOKEN_TYPE"
)

func credentialToKV(c models.Credential) map[string]string {
	return map[string]string{
		keyClientID:     c.ClientID,
		keyClientSecret: c.ClientSecret,
		keyAccessToken:  c.AccessToken,
		keyRefreshToken: c.RefreshToken,
		keyExpiresAt:    strconv.FormatInt(c.ExpiresAt, 10),
		keyTokenType:    c.TokenType,
	}
}

// sortedKeys gives writes a stable order.
func sortedKeys(kv map[string]string) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func credentialFromKV(kv map[string]string) (models.Credential, error) {
	c := models.Credential{
		ClientID:     kv[keyClientID],
		ClientSecret: kv[keyClientSecret],
		AccessToken:  kv[keyAccessToken],
		RefreshToken: kv[keyRefreshToken],
		TokenType:    kv[keyTokenType],
	}
	if v := kv[keyExpiresAt]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Credential{}, fmt.Errorf("stored %s %q is not a unix timestamp", keyExpiresAt, v)
		}
		c.ExpiresAt = n
	}
	return c, nil
}
