package ops

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/config"
	"github.com/hpungsan/ctxpack/internal/db"
	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/essentials"
	"github.com/hpungsan/ctxpack/internal/layout"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/manifest"
	"github.com/hpungsan/ctxpack/internal/pack"
)

// Missing essential file modes accepted by the non-interactive surfaces.
const (
	OnMissingAbort    = "abort"
	OnMissingContinue = "continue"
)

// DefaultKeepSnapshots is how many manifest snapshots ImportManifest retains.
const DefaultKeepSnapshots = 10

// Project bundles what every operation needs to find and read context.
type Project struct {
	Layout   layout.Layout
	Config   *config.Config
	Resolver *essentials.Resolver
	// DB is the manifest cache. Nil disables cached manifests.
	DB     *sql.DB
	Logger *slog.Logger
}

// NewProject resolves the layout for root and loads the task table,
// merging cfg.TasksFile over the built-in tasks when set.
func NewProject(root string, cfg *config.Config, database *sql.DB, logger *slog.Logger) (*Project, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger = logging.OrNop(logger)

	table := essentials.Builtin()
	if cfg.TasksFile != "" {
		path := cfg.TasksFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, filepath.FromSlash(path))
		}
		overlay, err := essentials.LoadTable(path)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("tasks file: %v", err))
		}
		table = essentials.Merge(table, overlay)
	}

	return &Project{
		Layout:   layout.New(root, cfg),
		Config:   cfg,
		Resolver: essentials.NewResolver(table, logger),
		DB:       database,
		Logger:   logger,
	}, nil
}

// TaskInput identifies a task and the values its path templates need.
type TaskInput struct {
	Task    string
	Issue   string
	AC      string
	DocFile string
	// Run overrides the latest YYYYMMDD_HHMMSS run directory name.
	Run string
}

// params builds the template values, defaulting the run to the newest one.
func (p *Project) params(in TaskInput) essentials.Params {
	run := strings.TrimSpace(in.Run)
	if run == "" {
		run = p.Layout.LatestRunName()
	}
	return essentials.Params{
		CodeDir:   p.Layout.CodeDirRel(),
		LatestRun: run,
		Issue:     strings.TrimSpace(in.Issue),
		AC:        strings.TrimSpace(in.AC),
		DocFile:   manifest.NormalizeKey(in.DocFile),
	}
}

// validateRun rejects run overrides that are not a single directory name.
func validateRun(run string) error {
	run = strings.TrimSpace(run)
	if run == "" {
		return nil
	}
	if containsTraversal(run) || strings.ContainsAny(run, `/\`) {
		return errors.NewInvalidRequest("run must be a directory name under the code context directory")
	}
	return nil
}

// runDir is the absolute run directory the task reads from, or "".
func (p *Project) runDir(in TaskInput) string {
	run := p.params(in).LatestRun
	if run == "" {
		return ""
	}
	return filepath.Join(p.Layout.CodeDir, run)
}

// PolicyFor maps an on-missing mode to a policy. An explicit policy wins;
// an empty mode aborts.
func PolicyFor(mode string, explicit pack.MissingFilePolicy) (pack.MissingFilePolicy, error) {
	if explicit != nil {
		return explicit, nil
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", OnMissingAbort:
		return pack.Abort, nil
	case OnMissingContinue:
		return pack.Continue, nil
	default:
		return nil, errors.NewInvalidRequest("on_missing_essential must be one of: abort, continue")
	}
}

// ManifestSource says where a manifest should come from.
type ManifestSource struct {
	// Path is a manifest file, relative to the project root or absolute.
	Path string
	// Cached reads the latest imported snapshot instead of a file.
	Cached bool
}

// LoadManifest returns the manifest for src and a description of where it
// came from. With neither a path nor the cache it falls back to the newest
// manifest file in the manifest directory. A missing or invalid manifest
// yields nil, not an error.
func (p *Project) LoadManifest(src ManifestSource) (*manifest.Manifest, string, error) {
	if src.Cached && src.Path == "" {
		if p.DB == nil {
			return nil, "", errors.NewInvalidRequest("manifest cache is not available")
		}
		snap, err := db.LatestSnapshot(p.DB)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				p.Logger.Warn("no cached manifest snapshot")
				return nil, "", nil
			}
			return nil, "", err
		}
		m, err := db.LoadManifest(p.DB, snap.ID)
		if err != nil {
			return nil, "", err
		}
		return m, "snapshot " + snap.ID, nil
	}

	path := src.Path
	if path == "" {
		path = p.Layout.LatestManifest()
		if path == "" {
			p.Logger.Debug("no manifest file found", "dir", p.Layout.ManifestDir)
			return nil, "", nil
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(p.Layout.Root, filepath.FromSlash(path))
	}
	return manifest.Load(path, p.Logger), path, nil
}
