package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// RepoDirName is the per-repository config directory.
const RepoDirName = ".ctxpack"

// Config holds application configuration.
type Config struct {
	// ProjectRoot is the directory all context paths are relative to.
	// Empty means the directory holding the nearest .ctxpack/ (or the
	// working directory when there is none).
	ProjectRoot string `json:"project_root,omitempty"`

	// CodeContextDir holds timestamped run directories (YYYYMMDD_HHMMSS)
	// produced by the context generator. Relative to ProjectRoot.
	CodeContextDir string `json:"code_context_dir,omitempty"`

	// CommonContextDir holds context shared by every run.
	CommonContextDir string `json:"common_context_dir,omitempty"`

	// ManifestDir holds YYYYMMDD_HHMMSS_manifest.json files.
	ManifestDir string `json:"manifest_dir,omitempty"`

	// TempCopyDir receives flattened .txt copies of a selection.
	// Its contents are deleted before each copy.
	TempCopyDir string `json:"temp_copy_dir,omitempty"`

	// OutputDir receives saved bundles, one subdirectory per task.
	OutputDir string `json:"output_dir,omitempty"`

	// MaxInputTokens is the token budget for a full context assembly.
	MaxInputTokens int `json:"max_input_tokens,omitempty"`

	// SelectorEssentialTokens is the separate budget for essential files
	// embedded in a selector payload.
	SelectorEssentialTokens int `json:"selector_essential_tokens,omitempty"`

	// ContextExtensions is the extension allow-list used when scanning
	// context directories. Entries include the leading dot.
	ContextExtensions []string `json:"context_extensions,omitempty"`

	// TasksFile is an optional YAML task table merged over the built-in one.
	// Relative paths resolve against ProjectRoot.
	TasksFile string `json:"tasks_file,omitempty"`

	// Exclude lists project-relative paths never included in a bundle,
	// essential or not.
	Exclude []string `json:"exclude,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "context", "manifest". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CodeContextDir:          "context_llm/code",
		CommonContextDir:        "context_llm/common",
		ManifestDir:             "scripts/data",
		TempCopyDir:             "context_llm/temp",
		OutputDir:               "llm_outputs",
		MaxInputTokens:          200000,
		SelectorEssentialTokens: 50000,
		ContextExtensions:       []string{".txt", ".json", ".md"},
		LogLevel:                "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ctxpack.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.ctxpack) and repo (.ctxpack) directories.
// Repo config is found by walking upward from startDir to find the nearest .ctxpack/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .ctxpack/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, RepoDirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ResolveRoot returns the project root for cfg: ProjectRoot if set
// (relative values resolve against startDir), else the directory holding
// the nearest repo config, else startDir.
func ResolveRoot(cfg *Config, startDir string) string {
	if cfg != nil && cfg.ProjectRoot != "" {
		if filepath.IsAbs(cfg.ProjectRoot) {
			return filepath.Clean(cfg.ProjectRoot)
		}
		return filepath.Join(startDir, cfg.ProjectRoot)
	}
	if p := FindRepoConfig(startDir); p != "" {
		return filepath.Dir(filepath.Dir(p))
	}
	return startDir
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
// Comments and trailing commas are allowed.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except ContextExtensions, which the overlay replaces when set.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ProjectRoot = pickString(overlay.ProjectRoot, base.ProjectRoot)
	result.CodeContextDir = pickString(overlay.CodeContextDir, base.CodeContextDir)
	result.CommonContextDir = pickString(overlay.CommonContextDir, base.CommonContextDir)
	result.ManifestDir = pickString(overlay.ManifestDir, base.ManifestDir)
	result.TempCopyDir = pickString(overlay.TempCopyDir, base.TempCopyDir)
	result.OutputDir = pickString(overlay.OutputDir, base.OutputDir)
	result.TasksFile = pickString(overlay.TasksFile, base.TasksFile)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	result.MaxInputTokens = overlay.MaxInputTokens
	if result.MaxInputTokens == 0 {
		result.MaxInputTokens = base.MaxInputTokens
	}

	result.SelectorEssentialTokens = overlay.SelectorEssentialTokens
	if result.SelectorEssentialTokens == 0 {
		result.SelectorEssentialTokens = base.SelectorEssentialTokens
	}

	// An extension list is a complete allow-list, not an addition.
	result.ContextExtensions = mergeStringSlice(base.ContextExtensions, nil)
	if len(overlay.ContextExtensions) > 0 {
		result.ContextExtensions = mergeStringSlice(overlay.ContextExtensions, nil)
	}

	result.Exclude = mergeStringSlice(base.Exclude, overlay.Exclude)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
