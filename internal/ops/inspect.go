package ops

import (
	"path/filepath"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/parts"
	"github.com/hpungsan/ctxpack/internal/textfile"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// InspectInput names a saved bundle, or carries its text directly.
type InspectInput struct {
	Path string
	Text string
}

// InspectedPart describes one block of a bundle.
type InspectedPart struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Essential  bool   `json:"essential"`
	Tokens     int    `json:"tokens"`
	HasSummary bool   `json:"has_summary"`
}

// InspectOutput summarizes a bundle.
type InspectOutput struct {
	Parts       []InspectedPart `json:"parts"`
	TotalTokens int             `json:"total_tokens"`
}

// Inspect parses a rendered bundle back into its blocks.
func Inspect(p *Project, input InspectInput) (*InspectOutput, error) {
	text := input.Text
	if input.Path != "" {
		rel, err := ValidateRelPath(p.Layout.Root, input.Path)
		if err != nil {
			return nil, err
		}
		abs := filepath.Join(p.Layout.Root, filepath.FromSlash(rel))
		if !textfile.IsRegular(abs) {
			return nil, errors.NewFileNotFound(rel)
		}
		text, err = textfile.Read(abs)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	ps, err := parts.Parse(text)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	out := &InspectOutput{Parts: make([]InspectedPart, len(ps)), TotalTokens: tokens.Estimate(text)}
	for i, part := range ps {
		out.Parts[i] = InspectedPart{
			Path:       part.Path,
			Kind:       part.Kind.String(),
			Essential:  part.Essential,
			Tokens:     part.Tokens(),
			HasSummary: part.Summary != "",
		}
	}
	return out, nil
}
