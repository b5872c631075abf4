package assemble

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/manifest"
	"github.com/hpungsan/ctxpack/internal/textfile"
)

// FileProcessUnit is one candidate file under consideration.
type FileProcessUnit struct {
	RelPath     string
	AbsPath     string
	RawContent  string
	IsEssential bool
}

type candidate struct {
	rel string
	abs string
	// missing marks an include entry that is not a regular file.
	missing bool
}

// gatherInclude resolves an explicit include list under root. Entries that
// are not regular files are kept with missing set.
func gatherInclude(root string, include []string, logger *slog.Logger) []candidate {
	out := make([]candidate, 0, len(include))
	for _, raw := range include {
		rel := manifest.NormalizeKey(raw)
		if rel == "" {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if !textfile.IsRegular(abs) {
			logger.Warn("included file not found, skipping", "path", rel)
			out = append(out, candidate{rel: rel, abs: abs, missing: true})
			continue
		}
		out = append(out, candidate{rel: rel, abs: abs})
	}
	return out
}

// gatherScan walks dirs in order, collecting files whose extension is in
// exts. Absent directories are skipped.
func gatherScan(root string, dirs []string, exts []string, logger *slog.Logger) []candidate {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}

	var out []candidate
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Debug("context directory not found, skipping", "dir", dir)
			continue
		}
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("cannot read path, skipping", "path", p, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !allowed[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			out = append(out, candidate{rel: filepath.ToSlash(rel), abs: p})
			return nil
		})
		if err != nil {
			logger.Warn("scan failed", "dir", dir, "error", err)
		}
	}
	return out
}
