// Package selector builds the request sent to a file-selecting model and
// parses its answer.
package selector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/budget"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/manifest"
	"github.com/hpungsan/ctxpack/internal/pack"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// Template placeholders.
const (
	EssentialPlaceholder = "{{ESSENTIAL_FILES_CONTENT}}"
	ManifestPlaceholder  = "{{REMAINING_MANIFEST_JSON}}"
)

// DefaultTemplate is used when no template is supplied.
const DefaultTemplate = `Select the files most relevant to the task.
Reply with JSON only: {"relevant_files": ["path", ...]}.

Files already included:
` + EssentialPlaceholder + `

Manifest of the remaining files:
` + ManifestPlaceholder

// PayloadInput configures BuildPayload.
type PayloadInput struct {
	Root string
	// Essentials are the resolved relative paths for the task.
	Essentials []string
	// Manifest is required.
	Manifest *manifest.Manifest
	Template string
	// MaxEssentialTokens is the packer budget, independent of any assembly budget.
	MaxEssentialTokens int
	Policy             pack.MissingFilePolicy
	Logger             *slog.Logger
}

// Payload is a filled selector prompt.
type Payload struct {
	Text            string
	Loaded          []string
	EssentialTokens int
	EstimatedTokens int
	Remaining       *manifest.Manifest
}

// BuildPayload packs the essentials into their own budget and embeds them,
// plus the manifest minus those files, into the template.
func BuildPayload(in PayloadInput) (*Payload, error) {
	logger := logging.OrNop(in.Logger)
	m, err := manifest.Require(in.Manifest, "")
	if err != nil {
		return nil, err
	}
	tmpl := in.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}

	entries := make([]pack.Entry, len(in.Essentials))
	for i, rel := range in.Essentials {
		rel = manifest.NormalizeKey(rel)
		entries[i] = pack.Entry{Rel: rel, Abs: filepath.Join(in.Root, filepath.FromSlash(rel))}
	}

	b := budget.New(in.MaxEssentialTokens)
	res, err := pack.Pack(entries, b, pack.Options{Policy: in.Policy, Logger: logger})
	if err != nil {
		return nil, err
	}

	remaining := m.Without(res.Loaded)
	manifestJSON, err := remaining.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode remaining manifest: %w", err)
	}

	text := strings.ReplaceAll(tmpl, EssentialPlaceholder, res.Text())
	text = strings.ReplaceAll(text, ManifestPlaceholder, manifestJSON)

	p := &Payload{
		Text:            text,
		Loaded:          res.Loaded,
		EssentialTokens: res.Used,
		EstimatedTokens: tokens.Estimate(text),
		Remaining:       remaining,
	}
	logger.Info("selector payload built",
		"estimated_tokens", p.EstimatedTokens,
		"essential_tokens", p.EssentialTokens,
		"essential_files", len(p.Loaded),
		"manifest_files", remaining.Len())
	return p, nil
}

// ParseResponse extracts relevant_files from a selector reply. Markdown code
// fences around the JSON are ignored, as are non-string entries.
func ParseResponse(text string) ([]string, error) {
	body := stripFences(text)
	var resp struct {
		RelevantFiles []any `json:"relevant_files"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("parse selector response: %w", err)
	}
	if resp.RelevantFiles == nil {
		return nil, fmt.Errorf("parse selector response: missing \"relevant_files\"")
	}

	out := make([]string, 0, len(resp.RelevantFiles))
	seen := make(map[string]bool, len(resp.RelevantFiles))
	for _, v := range resp.RelevantFiles {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = manifest.NormalizeKey(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
