package assemble

import (
	"path"
	"strings"

	"github.com/hpungsan/ctxpack/internal/manifest"
)

// Excluder matches project-relative paths against an exclusion list.
// Entries match exactly, as a glob (path.Match), or as a directory prefix.
type Excluder struct {
	exact    map[string]bool
	patterns []string
}

// NewExcluder normalizes entries to forward-slash relative form.
func NewExcluder(entries []string) *Excluder {
	e := &Excluder{exact: make(map[string]bool, len(entries))}
	for _, raw := range entries {
		p := strings.TrimSuffix(manifest.NormalizeKey(raw), "/")
		if p == "" {
			continue
		}
		e.exact[p] = true
		e.patterns = append(e.patterns, p)
	}
	return e
}

// Excluded reports whether rel is covered by the list.
func (e *Excluder) Excluded(rel string) bool {
	if e == nil {
		return false
	}
	rel = manifest.NormalizeKey(rel)
	if e.exact[rel] {
		return true
	}
	for _, p := range e.patterns {
		if strings.HasPrefix(rel, p+"/") {
			return true
		}
		if ok, err := path.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
