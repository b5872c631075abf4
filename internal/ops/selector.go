package ops

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/pack"
	"github.com/hpungsan/ctxpack/internal/selector"
	"github.com/hpungsan/ctxpack/internal/textfile"
)

// SelectorPayloadInput contains parameters for the SelectorPayload operation.
type SelectorPayloadInput struct {
	TaskInput
	// Template is the prompt text. TemplatePath is read when Template is
	// empty; with neither the built-in template is used.
	Template     string
	TemplatePath string
	// MaxEssentialTokens defaults to the configured SelectorEssentialTokens.
	MaxEssentialTokens int
	OnMissing          string
	Policy             pack.MissingFilePolicy
	Manifest           ManifestSource
}

// SelectorPayloadOutput contains the filled selector prompt.
type SelectorPayloadOutput struct {
	Text            string   `json:"text"`
	Loaded          []string `json:"loaded"`
	EssentialTokens int      `json:"essential_tokens"`
	EstimatedTokens int      `json:"estimated_tokens"`
	ManifestFiles   int      `json:"manifest_files"`
	ManifestSource  string   `json:"manifest_source"`
}

// SelectorPayload builds the prompt asking a model to pick relevant files.
// The essential files get their own budget, separate from any assembly.
// A manifest is required.
func SelectorPayload(p *Project, input SelectorPayloadInput) (*SelectorPayloadOutput, error) {
	policy, err := PolicyFor(input.OnMissing, input.Policy)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolveEssentials(p, input.TaskInput)
	if err != nil {
		return nil, err
	}

	m, source, err := p.LoadManifest(input.Manifest)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.NewManifestRequired(input.Manifest.Path)
	}

	tmpl := input.Template
	if strings.TrimSpace(tmpl) == "" && input.TemplatePath != "" {
		rel, err := ValidateRelPath(p.Layout.Root, input.TemplatePath)
		if err != nil {
			return nil, err
		}
		abs := filepath.Join(p.Layout.Root, filepath.FromSlash(rel))
		tmpl, err = textfile.Read(abs)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot read template %s: %v", rel, err))
		}
	}

	max := input.MaxEssentialTokens
	if max <= 0 {
		max = p.Config.SelectorEssentialTokens
	}

	payload, err := selector.BuildPayload(selector.PayloadInput{
		Root:               p.Layout.Root,
		Essentials:         resolved.Files,
		Manifest:           m,
		Template:           tmpl,
		MaxEssentialTokens: max,
		Policy:             policy,
		Logger:             p.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &SelectorPayloadOutput{
		Text:            payload.Text,
		Loaded:          nonNil(payload.Loaded),
		EssentialTokens: payload.EssentialTokens,
		EstimatedTokens: payload.EstimatedTokens,
		ManifestFiles:   payload.Remaining.Len(),
		ManifestSource:  source,
	}, nil
}

// ParseSelection extracts the selected paths from a model reply and drops
// any that escape the project root.
func ParseSelection(p *Project, reply string) ([]string, error) {
	paths, err := selector.ParseResponse(reply)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	out := make([]string, 0, len(paths))
	for _, raw := range paths {
		rel, err := ValidateRelPath(p.Layout.Root, raw)
		if err != nil {
			p.Logger.Warn("selected path rejected", "path", raw, "error", err)
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}
