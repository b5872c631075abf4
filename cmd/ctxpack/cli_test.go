package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ctxpack/internal/config"
	"github.com/hpungsan/ctxpack/internal/db"
	"github.com/hpungsan/ctxpack/internal/ops"
)

const testRun = "context_llm/code/20240101_120000"

// writeFile creates root/rel with content.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

// setupTestProject lays out a project holding the commit-message essentials,
// backed by a temporary database.
func setupTestProject(t *testing.T) *ops.Project {
	t.Helper()
	old := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = old })

	root := t.TempDir()
	writeFile(t, root, testRun+"/git_diff_cached.txt", "diff --git a/x b/x")
	writeFile(t, root, testRun+"/git_log.txt", "commit abc")
	writeFile(t, root, "context_llm/common/shared.md", "# Shared")
	writeFile(t, root, "docs/guia_de_desenvolvimento.md", "# Guia\n\nregras")

	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	p, err := ops.NewProject(root, config.DefaultConfig(), database, nil)
	require.NoError(t, err)
	return p
}

// runCLI runs args against p with stdin, returning stdout.
func runCLI(t *testing.T, p *ops.Project, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(p)
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"ctxpack"}, args...))
	return out.String(), err
}

func TestCLIEssentials(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "essentials", "--task", "commit-message")
	require.NoError(t, err)

	var got ops.ResolveEssentialsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.True(t, got.Known)
	require.Contains(t, got.Files, testRun+"/git_diff_cached.txt")

	_, err = runCLI(t, p, "", "essentials")
	require.Error(t, err, "--task is required")
}

func TestCLIAssemble(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "assemble", "--task", "commit-message")
	require.NoError(t, err)
	require.Contains(t, out, "--- START OF ESSENTIAL FILE "+testRun+"/git_diff_cached.txt ---")
	require.Contains(t, out, "--- START OF FILE context_llm/common/shared.md ---")
}

func TestCLIAssemble_JSONAndSave(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "assemble", "--task", "commit-message", "--save", "--json")
	require.NoError(t, err)

	var got ops.AssembleOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.NotNil(t, got.Bundle)
	require.FileExists(t, got.Bundle.Path)
	require.LessOrEqual(t, got.TokensUsed, got.MaxTokens)
}

func TestCLIAssemble_MissingEssential(t *testing.T) {
	p := setupTestProject(t)
	require.NoError(t, os.Remove(filepath.Join(p.Layout.Root, filepath.FromSlash(testRun+"/git_log.txt"))))

	_, err := runCLI(t, p, "", "assemble", "--task", "commit-message")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[MISSING_ESSENTIAL_FILE]")

	out, err := runCLI(t, p, "", "assemble", "--task", "commit-message", "--on-missing", "continue")
	require.NoError(t, err)
	require.NotContains(t, out, "git_log.txt ---")

	_, err = runCLI(t, p, "", "assemble", "--task", "commit-message", "--on-missing", "maybe")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIAssemble_SelectFromStdin(t *testing.T) {
	p := setupTestProject(t)
	writeFile(t, p.Layout.Root, "src/a.go", "package a")

	reply := "```json\n{\"relevant_files\": [\"src/a.go\", \"../outside.txt\"]}\n```"
	out, err := runCLI(t, p, reply, "assemble", "--task", "commit-message", "--select-from", "-")
	require.NoError(t, err)
	require.Contains(t, out, "--- START OF FILE src/a.go ---")
	require.NotContains(t, out, "shared.md", "a selection replaces the directory scan")
}

func TestCLIAssemble_ReviewQuitLoadsDefaultContext(t *testing.T) {
	for _, stdin := range []string{"q\n", ""} {
		p := setupTestProject(t)

		out, err := runCLI(t, p, stdin, "assemble", "--include", "docs/guia_de_desenvolvimento.md", "--review")
		require.NoError(t, err, "stdin %q", stdin)
		require.Contains(t, out, "--- START OF FILE context_llm/common/shared.md ---", "stdin %q", stdin)
		require.NotContains(t, out, "START OF FILE docs/guia_de_desenvolvimento.md", "stdin %q", stdin)
	}
}

func TestCLIAssemble_ReviewConfirm(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "y\n", "assemble", "--include", "docs/guia_de_desenvolvimento.md", "--review")
	require.NoError(t, err)
	require.Contains(t, out, "--- START OF FILE docs/guia_de_desenvolvimento.md ---")
	require.NotContains(t, out, "shared.md")
}

func TestCLIAssemble_Exclude(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "assemble", "--task", "commit-message",
		"--exclude", "context_llm/common", "--exclude", "docs/*.md", "--on-missing", "continue")
	require.NoError(t, err)
	require.NotContains(t, out, "shared.md")
	require.NotContains(t, out, "guia_de_desenvolvimento.md ---")
	require.Contains(t, out, testRun+"/git_diff_cached.txt ---")
}

func TestCLIEstimate(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, strings.Repeat("x", 38), "estimate")
	require.NoError(t, err)
	var got ops.EstimateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Equal(t, 10, got.Tokens)

	out, err = runCLI(t, p, "", "estimate", testRun+"/git_log.txt", "nope.txt")
	require.NoError(t, err)
	got = ops.EstimateOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Files, 2)
	require.True(t, got.Files[1].Missing)
}

func TestCLIManifest(t *testing.T) {
	p := setupTestProject(t)
	writeFile(t, p.Layout.Root, "scripts/data/20240101_000000_manifest.json",
		`{"files": {"context_llm/common/shared.md": {"summary": "shared notes", "token_count": 2}}}`)

	out, err := runCLI(t, p, "", "manifest", "import")
	require.NoError(t, err)
	var imported ops.ImportManifestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &imported), out)
	require.Equal(t, 1, imported.FileCount)

	out, err = runCLI(t, p, "", "manifest", "show", "context_llm/common/shared.md")
	require.NoError(t, err)
	require.Contains(t, out, "shared notes")

	out, err = runCLI(t, p, "", "manifest", "list")
	require.NoError(t, err)
	require.Contains(t, out, imported.ID)

	out, err = runCLI(t, p, "", "assemble", "--task", "commit-message", "--cached-manifest", "--json")
	require.NoError(t, err)
	require.Contains(t, out, "snapshot "+imported.ID)
}

func TestCLIInspect(t *testing.T) {
	p := setupTestProject(t)

	bundle, err := runCLI(t, p, "", "pack", "--task", "commit-message")
	require.NoError(t, err)

	out, err := runCLI(t, p, bundle, "inspect")
	require.NoError(t, err)
	var got ops.InspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Parts, 3)
	require.True(t, got.Parts[0].Essential)
}

func TestCLICopyTemp(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "copy-temp", "context_llm/common/shared.md")
	require.NoError(t, err)
	var got ops.CopyToTempOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Copied, 1)
	require.FileExists(t, filepath.Join(got.Dir, got.Copied[0].Name))

	_, err = runCLI(t, p, "", "copy-temp")
	require.Error(t, err)
}

func TestCLIDocs(t *testing.T) {
	p := setupTestProject(t)

	out, err := runCLI(t, p, "", "docs")
	require.NoError(t, err)
	require.Contains(t, out, "docs/guia_de_desenvolvimento.md")
	require.Contains(t, out, `"title": "Guia"`)
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"ctxpack"}, false},
		{"assemble command", []string{"ctxpack", "assemble"}, true},
		{"manifest command", []string{"ctxpack", "manifest"}, true},
		{"help flag", []string{"ctxpack", "--help"}, true},
		{"short version flag", []string{"ctxpack", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"ctxpack", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isCLIMode(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"ctxpack"}, false},
		{"help flag", []string{"ctxpack", "-h"}, true},
		{"version flag", []string{"ctxpack", "--version"}, true},
		{"help subcommand", []string{"ctxpack", "help"}, true},
		{"assemble is not help", []string{"ctxpack", "assemble"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isHelpOrVersion(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	got, err := readStdin(strings.NewReader("small content"), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "small content" {
		t.Errorf("expected %q, got %q", "small content", got)
	}

	if _, err := readStdin(strings.NewReader(strings.Repeat("x", 100)), 50); err == nil {
		t.Error("expected error for oversized input")
	}

	got, err = readStdin(strings.NewReader(strings.Repeat("x", 50)), 50)
	if err != nil || len(got) != 50 {
		t.Errorf("exact limit: len %d, err %v", len(got), err)
	}
}
