package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/models"
)

// DotenvStore keeps the credential in a .env file next to the other settings
// it may hold. Unrelated keys are preserved on save; comments are not.
// It keeps no run history.
type DotenvStore struct {
	path string
}

var _ Backend = (*DotenvStore)(nil)

func NewDotenv(path string) *DotenvStore {
	return &DotenvStore{path: path}
}

func (s *DotenvStore) Load(_ context.Context) (models.Credential, error) {
	kv, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Credential{}, auth.ErrNoCredential
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return credentialFromKV(kv)
}

// Save rewrites the file through a temporary file and a rename, so a crash
// leaves either the old or the new credential on disk.
func (s *DotenvStore) Save(_ context.Context, c models.Credential) error {
	kv, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		kv = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	for k, v := range credentialToKV(c) {
		kv[k] = v
	}

	content, err := godotenv.Marshal(kv)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".env-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

func (s *DotenvStore) RecordRun(context.Context, Run) error { return nil }

func (s *DotenvStore) RecentRuns(context.Context, int) ([]Run, error) { return nil, nil }

func (s *DotenvStore) Close() error { return nil }
