package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/ctxpack/internal/db"
	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/manifest"
)

// ImportManifestInput contains parameters for the ImportManifest operation.
type ImportManifestInput struct {
	// Path defaults to the newest manifest in the manifest directory.
	Path string
	// Keep is how many snapshots to retain (default: DefaultKeepSnapshots).
	Keep int
}

// ImportManifestOutput contains the result of the ImportManifest operation.
type ImportManifestOutput struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	FileCount  int    `json:"file_count"`
	ImportedAt int64  `json:"imported_at"`
	Pruned     int    `json:"pruned"`
}

// ImportManifest parses a manifest file and stores it as a new snapshot.
// Unlike the soft loader used during assembly, an unreadable or invalid
// manifest is an error here.
func ImportManifest(ctx context.Context, p *Project, input ImportManifestInput) (*ImportManifestOutput, error) {
	if p.DB == nil {
		return nil, errors.NewInvalidRequest("manifest cache is not available")
	}

	path := input.Path
	if path == "" {
		path = p.Layout.LatestManifest()
		if path == "" {
			return nil, errors.NewManifestRequired(p.Layout.ManifestDir)
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(p.Layout.Root, filepath.FromSlash(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid manifest %s: %v", path, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("manifest import")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	source := path
	if rel, err := p.Layout.Rel(path); err == nil {
		source = rel
	}
	snap := &db.Snapshot{ID: id, Source: source, ImportedAt: time.Now().Unix()}
	if err := db.InsertSnapshot(p.DB, snap, m); err != nil {
		return nil, err
	}

	keep := input.Keep
	if keep <= 0 {
		keep = DefaultKeepSnapshots
	}
	pruned, err := db.PruneSnapshots(p.DB, keep)
	if err != nil {
		return nil, err
	}

	p.Logger.Info("manifest imported", "id", id, "source", source, "files", snap.FileCount, "pruned", pruned)
	return &ImportManifestOutput{
		ID:         id,
		Source:     source,
		FileCount:  snap.FileCount,
		ImportedAt: snap.ImportedAt,
		Pruned:     pruned,
	}, nil
}

// LookupManifestInput contains parameters for the LookupManifest operation.
type LookupManifestInput struct {
	// SnapshotID defaults to the latest snapshot.
	SnapshotID string
	// Path selects a single entry. Empty lists the snapshot's paths.
	Path string
}

// ManifestEntry is one file's cached metadata.
type ManifestEntry struct {
	Path              string  `json:"path"`
	Type              string  `json:"type,omitempty"`
	Summary           *string `json:"summary"`
	TokenCount        *int    `json:"token_count"`
	SummaryTokenCount *int    `json:"summary_token_count"`
}

// LookupManifestOutput contains the snapshot and either one entry or its paths.
type LookupManifestOutput struct {
	Snapshot db.Snapshot    `json:"snapshot"`
	Entry    *ManifestEntry `json:"entry,omitempty"`
	Paths    []string       `json:"paths,omitempty"`
}

// LookupManifest reads from the manifest cache.
func LookupManifest(p *Project, input LookupManifestInput) (*LookupManifestOutput, error) {
	if p.DB == nil {
		return nil, errors.NewInvalidRequest("manifest cache is not available")
	}

	var snap *db.Snapshot
	var err error
	if input.SnapshotID != "" {
		snap, err = db.GetSnapshot(p.DB, input.SnapshotID)
	} else {
		snap, err = db.LatestSnapshot(p.DB)
	}
	if err != nil {
		return nil, err
	}

	out := &LookupManifestOutput{Snapshot: *snap}
	if input.Path != "" {
		md, err := db.LookupFile(p.DB, snap.ID, input.Path)
		if err != nil {
			return nil, err
		}
		out.Entry = &ManifestEntry{
			Path:              manifest.NormalizeKey(input.Path),
			Type:              md.Type,
			Summary:           md.Summary,
			TokenCount:        md.TokenCount,
			SummaryTokenCount: md.SummaryTokenCount,
		}
		return out, nil
	}

	m, err := db.LoadManifest(p.DB, snap.ID)
	if err != nil {
		return nil, err
	}
	out.Paths = m.Paths()
	return out, nil
}

// ListSnapshots returns the newest cached manifest snapshots.
func ListSnapshots(p *Project, limit int) ([]db.Snapshot, error) {
	if p.DB == nil {
		return nil, errors.NewInvalidRequest("manifest cache is not available")
	}
	list, err := db.ListSnapshots(p.DB, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []db.Snapshot{}
	}
	return list, nil
}
