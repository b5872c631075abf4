package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/errors"
)

// SaveBundleInput contains parameters for the SaveBundle operation.
type SaveBundleInput struct {
	Task    string
	Content string
}

// SaveBundleOutput contains the result of the SaveBundle operation.
type SaveBundleOutput struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// SaveBundle writes content to OutputDir/<task>/<ULID>.txt. The task name is
// sanitized before it becomes a directory.
func SaveBundle(p *Project, input SaveBundleInput) (*SaveBundleOutput, error) {
	if strings.TrimSpace(input.Task) == "" {
		return nil, errors.NewInvalidRequest("task is required")
	}
	if p.Layout.OutputDir == "" {
		return nil, errors.NewInvalidRequest("output directory is not configured")
	}

	dir := filepath.Join(p.Layout.OutputDir, SanitizeForFilename(input.Task))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	path := filepath.Join(dir, id+".txt")

	f, err := openFileNoFollow(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create bundle file: %w", err))
	}
	if _, err := f.WriteString(input.Content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.NewInternal(fmt.Errorf("failed to write bundle: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errors.NewInternal(fmt.Errorf("failed to close bundle: %w", err))
	}

	rel := path
	if r, err := p.Layout.Rel(path); err == nil {
		rel = r
	}
	p.Logger.Info("bundle saved", "task", input.Task, "path", rel)
	return &SaveBundleOutput{ID: id, Path: rel}, nil
}
