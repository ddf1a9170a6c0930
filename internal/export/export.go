// Package export writes the JSON export payload to disk.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/stravasummary/internal/models"
)

// ErrWrite marks a failure to create or write the export file. The activities
// were fetched, but nothing usable reached disk.
var ErrWrite = errors.New("writing export failed")

// Write stores payload as indented JSON at dir/fileName, creating dir when
// needed. The file is written to a temporary name and renamed into place, so
// an existing export is never left half-written. It returns the final path and
// the number of bytes written.
func Write(dir, fileName string, payload models.ExportPayload) (string, int64, error) {
	if payload.Activities == nil {
		payload.Activities = []models.NormalizedSummary{}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("%w: encoding payload: %w", ErrWrite, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("%w: creating %s: %w", ErrWrite, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+fileName+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.Rename(tmpName, path); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return path, int64(len(data)), nil
}
