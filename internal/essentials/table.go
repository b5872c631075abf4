package essentials

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Task lists the path templates for one task.
type Task struct {
	Aliases []string `yaml:"aliases,omitempty"`
	Files   []string `yaml:"files"`
}

// Table maps task names to their essential file templates.
type Table map[string]Task

type tableFile struct {
	Tasks Table `yaml:"tasks"`
}

// Builtin returns the default task table.
func Builtin() Table {
	common := []string{
		"docs/guia_de_desenvolvimento.md",
		"docs/padroes_codigo_boas_praticas.md",
	}
	diffs := []string{
		"{run}/git_diff_cached.txt",
		"{run}/git_diff_unstaged.txt",
	}
	with := func(groups ...[]string) []string {
		var out []string
		for _, g := range groups {
			out = append(out, g...)
		}
		return out
	}

	return Table{
		"resolve-ac": {Files: with(
			[]string{"{run}/github_issue_{issue}_details.json"},
			common,
			[]string{
				"{run}/phpunit_test_results.txt",
				"{run}/phpstan_analysis.txt",
				"{run}/dusk_test_results.txt",
				"docs/descricao_evento.md",
				"docs/formulario_inscricao.md",
			},
			diffs,
			[]string{"{run}/project_tree_L3.txt"},
		)},
		"analyze-ac": {Files: with(
			[]string{"{run}/github_issue_{issue}_details.json"},
			common,
			[]string{"docs/descricao_evento.md", "{run}/project_tree_L3.txt"},
		)},
		"commit-message": {
			Aliases: []string{"commit-mesage"},
			Files: []string{
				"{run}/git_diff_cached.txt",
				"{run}/git_log.txt",
				"docs/guia_de_desenvolvimento.md",
			},
		},
		"create-pr": {Files: with(
			[]string{
				"{run}/github_issue_{issue}_details.json",
				"{run}/git_log.txt",
			},
			diffs,
			[]string{"docs/guia_de_desenvolvimento.md"},
		)},
		"fix-artisan-test": {Files: with(
			[]string{"{run}/phpunit_test_results.txt"},
			common,
			diffs,
		)},
		"fix-artisan-dusk": {Files: with(
			[]string{"{run}/dusk_test_results.txt"},
			common,
			diffs,
		)},
		"fix-phpstan": {Files: with(
			[]string{"{run}/phpstan_analysis.txt"},
			common,
			diffs,
		)},
		"update-doc": {Files: with(
			[]string{"{doc}"},
			[]string{"docs/guia_de_desenvolvimento.md"},
			diffs,
			[]string{"{run}/git_log.txt", "{run}/project_tree_L3.txt"},
		)},
		"create-test-sub-issue": {Files: with(
			[]string{"{run}/github_issue_{issue}_details.json"},
			common,
			[]string{"{run}/project_tree_L3.txt"},
		)},
		"manifest-summary": {Files: []string{}},
	}
}

// LoadTable reads a YAML task table:
//
//	tasks:
//	  my-task:
//	    aliases: [mt]
//	    files:
//	      - "{run}/git_diff_cached.txt"
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse task table: %w", err)
	}
	if f.Tasks == nil {
		return Table{}, nil
	}
	return f.Tasks, nil
}

// Merge returns base with overlay's tasks added or replacing same-named ones.
func Merge(base, overlay Table) Table {
	out := make(Table, len(base)+len(overlay))
	for name, t := range base {
		out[name] = t
	}
	for name, t := range overlay {
		out[name] = t
	}
	return out
}
