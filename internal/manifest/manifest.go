// Package manifest loads precomputed per-file metadata (token counts and
// summaries) keyed by project-relative path.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	ctxerrors "github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// FileMetadata is the manifest entry for one file. Nil pointers mean the
// field was absent or null.
type FileMetadata struct {
	Type              string  `json:"type,omitempty"`
	Summary           *string `json:"summary"`
	TokenCount        *int    `json:"token_count"`
	SummaryTokenCount *int    `json:"summary_token_count"`
}

// HasSummary reports whether a non-blank summary is present.
func (m FileMetadata) HasSummary() bool {
	return m.Summary != nil && strings.TrimSpace(*m.Summary) != ""
}

// SummaryText returns the summary or "".
func (m FileMetadata) SummaryText() string {
	if m.Summary == nil {
		return ""
	}
	return *m.Summary
}

// SummaryTokens returns summary_token_count when present, otherwise an
// estimate of the summary text. Negative counts are treated as absent.
func (m FileMetadata) SummaryTokens() int {
	if m.SummaryTokenCount != nil && *m.SummaryTokenCount >= 0 {
		return *m.SummaryTokenCount
	}
	return tokens.Estimate(m.SummaryText())
}

// Manifest maps project-relative paths to metadata. A nil *Manifest is valid
// and behaves as an empty one.
type Manifest struct {
	Files map[string]FileMetadata `json:"files"`
}

// Parse decodes manifest JSON. The top-level "files" object is required.
// Entries that are not objects are dropped, and negative counts are
// discarded so callers fall back to estimates.
func Parse(data []byte) (*Manifest, error) {
	var raw struct {
		Files map[string]json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if raw.Files == nil {
		return nil, errors.New("parse manifest: missing \"files\" object")
	}

	m := &Manifest{Files: make(map[string]FileMetadata, len(raw.Files))}
	for path, entry := range raw.Files {
		var md FileMetadata
		if err := json.Unmarshal(entry, &md); err != nil {
			continue
		}
		md.TokenCount = nonNegative(md.TokenCount)
		md.SummaryTokenCount = nonNegative(md.SummaryTokenCount)
		m.Files[NormalizeKey(path)] = md
	}
	return m, nil
}

func nonNegative(n *int) *int {
	if n == nil || *n < 0 {
		return nil
	}
	return n
}

// Load reads the manifest at path. Any failure (missing file, unreadable,
// invalid JSON, no "files" key) is logged and yields nil.
func Load(path string, logger *slog.Logger) *Manifest {
	logger = logging.OrNop(logger)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("manifest not found", "path", path)
		} else {
			logger.Warn("manifest unreadable", "path", path, "error", err)
		}
		return nil
	}

	m, err := Parse(data)
	if err != nil {
		logger.Warn("manifest invalid", "path", path, "error", err)
		return nil
	}
	logger.Debug("manifest loaded", "path", path, "files", m.Len())
	return m
}

// NormalizeKey converts a path to the manifest key form: forward slashes,
// no leading "./".
func NormalizeKey(path string) string {
	p := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// Get returns the metadata for path.
func (m *Manifest) Get(path string) (FileMetadata, bool) {
	if m == nil || m.Files == nil {
		return FileMetadata{}, false
	}
	md, ok := m.Files[NormalizeKey(path)]
	return md, ok
}

// TokenCount returns the recorded token count for path, if any.
func (m *Manifest) TokenCount(path string) (int, bool) {
	md, ok := m.Get(path)
	if !ok || md.TokenCount == nil || *md.TokenCount < 0 {
		return 0, false
	}
	return *md.TokenCount, true
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Files)
}

// Paths returns all keys in sorted order.
func (m *Manifest) Paths() []string {
	if m == nil {
		return nil
	}
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Without returns a copy of m lacking the given paths.
func (m *Manifest) Without(paths []string) *Manifest {
	out := &Manifest{Files: make(map[string]FileMetadata, m.Len())}
	if m == nil {
		return out
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[NormalizeKey(p)] = true
	}
	for p, md := range m.Files {
		if !drop[p] {
			out.Files[p] = md
		}
	}
	return out
}

// JSON encodes m with indentation. encoding/json sorts map keys, so output
// is stable.
func (m *Manifest) JSON() (string, error) {
	if m == nil {
		m = &Manifest{Files: map[string]FileMetadata{}}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Require turns a nil manifest into a MANIFEST_REQUIRED error for flows that
// cannot proceed without metadata.
func Require(m *Manifest, source string) (*Manifest, error) {
	if m == nil {
		return nil, ctxerrors.NewManifestRequired(source)
	}
	return m, nil
}
