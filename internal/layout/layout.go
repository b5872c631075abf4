// Package layout locates the project directories a context build reads
// from and writes to.
package layout

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/hpungsan/ctxpack/internal/config"
)

var (
	runDirRe   = regexp.MustCompile(`^\d{8}_\d{6}$`)
	manifestRe = regexp.MustCompile(`^\d{8}_\d{6}_manifest\.json$`)
)

// Layout holds absolute project paths.
type Layout struct {
	Root        string
	CodeDir     string
	CommonDir   string
	ManifestDir string
	TempDir     string
	OutputDir   string
}

// New resolves the configured directories against root.
func New(root string, cfg *config.Config) Layout {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	join := func(p string) string {
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, filepath.FromSlash(p))
	}
	return Layout{
		Root:        root,
		CodeDir:     join(cfg.CodeContextDir),
		CommonDir:   join(cfg.CommonContextDir),
		ManifestDir: join(cfg.ManifestDir),
		TempDir:     join(cfg.TempCopyDir),
		OutputDir:   join(cfg.OutputDir),
	}
}

// Rel returns abs relative to the project root with forward slashes.
func (l Layout) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.Root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// CodeDirRel is CodeDir relative to the root.
func (l Layout) CodeDirRel() string {
	rel, err := l.Rel(l.CodeDir)
	if err != nil {
		return filepath.ToSlash(l.CodeDir)
	}
	return rel
}

// LatestRunName returns the newest YYYYMMDD_HHMMSS directory name under
// CodeDir, or "" if there is none.
func (l Layout) LatestRunName() string {
	entries, err := os.ReadDir(l.CodeDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && runDirRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[len(names)-1]
}

// LatestRunDir returns the absolute path of the newest run directory.
func (l Layout) LatestRunDir() string {
	name := l.LatestRunName()
	if name == "" {
		return ""
	}
	return filepath.Join(l.CodeDir, name)
}

// LatestManifest returns the newest YYYYMMDD_HHMMSS_manifest.json in
// ManifestDir, or "".
func (l Layout) LatestManifest() string {
	entries, err := os.ReadDir(l.ManifestDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && manifestRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(l.ManifestDir, names[len(names)-1])
}
