package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRepoConfig(t *testing.T, root, body string) string {
	t.Helper()
	dir := filepath.Join(root, RepoDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxInputTokens != def.MaxInputTokens {
		t.Fatalf("MaxInputTokens = %d, want %d", cfg.MaxInputTokens, def.MaxInputTokens)
	}
	if cfg.CodeContextDir != "context_llm/code" {
		t.Errorf("CodeContextDir = %q", cfg.CodeContextDir)
	}
	if len(cfg.ContextExtensions) != 3 {
		t.Errorf("ContextExtensions = %v", cfg.ContextExtensions)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"max_input_tokens": 500}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxInputTokens != 500 {
		t.Fatalf("MaxInputTokens = %d, want %d", cfg.MaxInputTokens, 500)
	}
	if cfg.SelectorEssentialTokens != DefaultConfig().SelectorEssentialTokens {
		t.Errorf("SelectorEssentialTokens = %d, want default", cfg.SelectorEssentialTokens)
	}
}

func TestLoad_AllowsCommentsAndTrailingCommas(t *testing.T) {
	tmpDir := t.TempDir()
	body := `{
  // smaller budget for local runs
  "max_input_tokens": 1000,
  "exclude": ["context_llm/code/secret.txt",], /* trailing comma */
}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxInputTokens != 1000 {
		t.Errorf("MaxInputTokens = %d, want 1000", cfg.MaxInputTokens)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "context_llm/code/secret.txt" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["manifest_import", "context_assemble"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "manifest_import" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "manifest_import")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"max_input_tokens": 8000, "disabled_tools": ["manifest_import"], "log_level": "debug"}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	writeRepoConfig(t, repoRoot, `{"max_input_tokens": 5000, "disabled_tools": ["context_assemble"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.MaxInputTokens != 5000 {
		t.Errorf("MaxInputTokens = %d, want 5000 (repo override)", cfg.MaxInputTokens)
	}
	// Global scalar survives when repo leaves it unset
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.MaxInputTokens != 200000 {
		t.Errorf("MaxInputTokens = %d, want 200000", cfg.MaxInputTokens)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeRepoConfig(t, tmpDir, `{"disabled_types": ["manifest"]}`)

	subdir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "manifest" {
		t.Errorf("DisabledTypes = %v, want [manifest]", cfg.DisabledTypes)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxInputTokens: 10000, SelectorEssentialTokens: 5, OutputDir: "out"}
	overlay := &Config{MaxInputTokens: 5000}

	result := Merge(base, overlay)

	if result.MaxInputTokens != 5000 {
		t.Errorf("MaxInputTokens = %d, want 5000 (overlay)", result.MaxInputTokens)
	}
	if result.SelectorEssentialTokens != 5 {
		t.Errorf("SelectorEssentialTokens = %d, want 5 (base, overlay is zero)", result.SelectorEssentialTokens)
	}
	if result.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want base value", result.OutputDir)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{Exclude: []string{"a.txt", "b.txt"}}
	overlay := &Config{Exclude: []string{"b.txt", " c.txt "}}

	result := Merge(base, overlay)

	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(result.Exclude) != len(want) {
		t.Fatalf("Exclude = %v, want %v", result.Exclude, want)
	}
	for i := range want {
		if result.Exclude[i] != want[i] {
			t.Errorf("Exclude[%d] = %q, want %q", i, result.Exclude[i], want[i])
		}
	}
}

func TestMerge_ExtensionsReplaced(t *testing.T) {
	base := &Config{ContextExtensions: []string{".txt", ".md"}}

	if got := Merge(base, &Config{ContextExtensions: []string{".go"}}).ContextExtensions; len(got) != 1 || got[0] != ".go" {
		t.Errorf("ContextExtensions = %v, want [.go]", got)
	}
	if got := Merge(base, &Config{}).ContextExtensions; len(got) != 2 {
		t.Errorf("ContextExtensions = %v, want base", got)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeRepoConfig(t, tmpDir, `{}`)

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestResolveRoot(t *testing.T) {
	repo := t.TempDir()
	writeRepoConfig(t, repo, `{}`)
	sub := filepath.Join(repo, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if got := ResolveRoot(&Config{}, sub); got != repo {
		t.Errorf("ResolveRoot(repo) = %q, want %q", got, repo)
	}

	plain := t.TempDir()
	if got := ResolveRoot(nil, plain); got != plain {
		t.Errorf("ResolveRoot(no repo) = %q, want %q", got, plain)
	}

	if got := ResolveRoot(&Config{ProjectRoot: "proj"}, plain); got != filepath.Join(plain, "proj") {
		t.Errorf("ResolveRoot(relative) = %q", got)
	}
	abs := t.TempDir()
	if got := ResolveRoot(&Config{ProjectRoot: abs}, plain); got != abs {
		t.Errorf("ResolveRoot(absolute) = %q, want %q", got, abs)
	}
}
