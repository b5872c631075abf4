package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/textfile"
)

// CopyToTempInput contains parameters for the CopyToTemp operation.
type CopyToTempInput struct {
	// Files are project-relative paths, copied in order.
	Files []string
}

// CopiedFile maps a source to its flattened name in the temp directory.
type CopiedFile struct {
	Source string `json:"source"`
	Name   string `json:"name"`
}

// CopyToTempOutput contains the result of the CopyToTemp operation.
type CopyToTempOutput struct {
	Dir     string       `json:"dir"`
	Copied  []CopiedFile `json:"copied"`
	Skipped []string     `json:"skipped"`
}

// CleanTemp removes the temp directory and recreates it empty.
func CleanTemp(p *Project) (string, error) {
	dir := p.Layout.TempDir
	if dir == "" {
		return "", errors.NewInvalidRequest("temp copy directory is not configured")
	}
	if !insideRoot(p.Layout.Root, dir) {
		return "", errors.NewInvalidRequest("temp copy directory must be inside the project root")
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to clean temp directory: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create temp directory: %w", err))
	}
	return dir, nil
}

// insideRoot reports whether dir lies strictly below root.
func insideRoot(root, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CopyToTemp cleans the temp directory and copies the files into it flat:
// subdirectories are dropped, every name gets a .txt extension, and clashing
// names get _1, _2, ... suffixes. Missing, non-regular and symlinked sources
// are skipped.
func CopyToTemp(ctx context.Context, p *Project, input CopyToTempInput) (*CopyToTempOutput, error) {
	rels, err := ValidateRelPaths(p.Layout.Root, input.Files)
	if err != nil {
		return nil, err
	}
	dir, err := CleanTemp(p)
	if err != nil {
		return nil, err
	}

	out := &CopyToTempOutput{Dir: dir, Copied: []CopiedFile{}, Skipped: []string{}}
	used := make(map[string]bool, len(rels))
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("copy to temp")
		}
		src := filepath.Join(p.Layout.Root, filepath.FromSlash(rel))
		if !textfile.IsRegular(src) {
			p.Logger.Warn("file not found or not a regular file, skipping", "path", rel)
			out.Skipped = append(out.Skipped, rel)
			continue
		}

		name := flatName(filepath.Base(src), used)
		if err := copyNoFollow(src, filepath.Join(dir, name)); err != nil {
			if errors.Is(err, errors.ErrInvalidRequest) || errors.Is(err, errors.ErrFileNotFound) {
				p.Logger.Warn("file skipped", "path", rel, "error", err)
				out.Skipped = append(out.Skipped, rel)
				continue
			}
			return nil, errors.NewInternal(err)
		}
		used[name] = true
		out.Copied = append(out.Copied, CopiedFile{Source: rel, Name: name})
		p.Logger.Debug("file copied to temp", "path", rel, "name", name)
	}

	p.Logger.Info("files copied to temp directory", "dir", dir, "copied", len(out.Copied), "skipped", len(out.Skipped))
	return out, nil
}

// flatName returns stem.txt, or stem_N.txt for the first N not yet used.
func flatName(base string, used map[string]bool) string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := stem + ".txt"
	for n := 1; used[name]; n++ {
		name = fmt.Sprintf("%s_%d.txt", stem, n)
	}
	return name
}

func copyNoFollow(src, dst string) error {
	if err := checkNotSymlink(src); err != nil {
		return err
	}
	in, err := openFileNoFollowRead(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openFileNoFollow(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
