// Package essentials maps a task name to the ordered list of files that
// must be in its context.
package essentials

import (
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hpungsan/ctxpack/internal/logging"
)

// Params are the values substituted into path templates.
//
// Placeholders: {code_dir} is CodeDir, {run} is CodeDir/LatestRun, {latest}
// is LatestRun, {issue}, {ac} and {doc} come from the task arguments.
type Params struct {
	CodeDir   string
	LatestRun string
	Issue     string
	AC        string
	DocFile   string
}

func (p Params) values() map[string]string {
	v := map[string]string{
		"code_dir": path.Clean(filepath.ToSlash(p.CodeDir)),
		"latest":   p.LatestRun,
		"issue":  p.Issue,
		"ac":     p.AC,
		"doc":    path.Clean(filepath.ToSlash(p.DocFile)),
	}
	if p.DocFile == "" {
		v["doc"] = ""
	}
	if p.CodeDir == "" {
		v["code_dir"] = ""
	}
	if p.LatestRun != "" {
		v["run"] = path.Join(filepath.ToSlash(p.CodeDir), p.LatestRun)
	}
	return v
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Resolver resolves tasks against a table.
type Resolver struct {
	table   Table
	aliases map[string]string
	logger  *slog.Logger
}

// NewResolver builds a resolver over table. A nil logger discards output.
func NewResolver(table Table, logger *slog.Logger) *Resolver {
	r := &Resolver{table: table, aliases: make(map[string]string), logger: logging.OrNop(logger)}
	for name, task := range table {
		for _, a := range task.Aliases {
			r.aliases[a] = name
		}
	}
	return r
}

// Default returns a resolver over the built-in table.
func Default(logger *slog.Logger) *Resolver {
	return NewResolver(Builtin(), logger)
}

// Tasks returns the known task names, sorted.
func (r *Resolver) Tasks() []string {
	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether task (or an alias) is in the table.
func (r *Resolver) Known(task string) bool {
	_, ok := r.lookup(task)
	return ok
}

func (r *Resolver) lookup(task string) (Task, bool) {
	task = strings.TrimSpace(task)
	if t, ok := r.table[task]; ok {
		return t, true
	}
	if canonical, ok := r.aliases[task]; ok {
		t, ok := r.table[canonical]
		return t, ok
	}
	return Task{}, false
}

// Resolve returns the task's essential files as project-relative,
// forward-slash paths in priority order. Unknown tasks resolve to nothing.
// Templates referring to a placeholder without a value are omitted.
func (r *Resolver) Resolve(task string, p Params) []string {
	t, ok := r.lookup(task)
	if !ok {
		r.logger.Debug("no essential files for task", "task", task)
		return []string{}
	}

	values := p.values()
	seen := make(map[string]bool, len(t.Files))
	out := make([]string, 0, len(t.Files))
	for _, tmpl := range t.Files {
		rel, ok := expand(tmpl, values)
		if !ok {
			r.logger.Debug("essential template skipped", "task", task, "template", tmpl)
			continue
		}
		rel = strings.TrimPrefix(path.Clean(rel), "./")
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out
}

func expand(tmpl string, values map[string]string) (string, bool) {
	ok := true
	s := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		v := values[m[1:len(m)-1]]
		if v == "" {
			ok = false
		}
		return v
	})
	return s, ok
}

// AbsPaths joins each relative path onto root.
func AbsPaths(root string, rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(root, filepath.FromSlash(r))
	}
	return out
}
