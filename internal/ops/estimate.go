package ops

import (
	"path/filepath"

	"github.com/hpungsan/ctxpack/internal/textfile"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// EstimateInput contains text and/or project files to estimate.
type EstimateInput struct {
	Text  string
	Paths []string
}

// FileEstimate is the estimate for one file.
type FileEstimate struct {
	Path    string `json:"path"`
	Chars   int    `json:"chars"`
	Tokens  int    `json:"tokens"`
	Missing bool   `json:"missing,omitempty"`
}

// EstimateOutput contains the token estimates.
type EstimateOutput struct {
	Chars  int            `json:"chars"`
	Tokens int            `json:"tokens"`
	Files  []FileEstimate `json:"files,omitempty"`
	Total  int            `json:"total_tokens"`
}

// Estimate applies the chars/3.8 estimate to text and to each file.
// Unreadable files are reported as missing with zero tokens.
func Estimate(p *Project, input EstimateInput) (*EstimateOutput, error) {
	out := &EstimateOutput{
		Chars:  tokens.CountChars(input.Text),
		Tokens: tokens.Estimate(input.Text),
	}
	out.Total = out.Tokens

	if len(input.Paths) == 0 {
		return out, nil
	}
	rels, err := ValidateRelPaths(p.Layout.Root, input.Paths)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		content, err := textfile.Read(filepath.Join(p.Layout.Root, filepath.FromSlash(rel)))
		if err != nil {
			out.Files = append(out.Files, FileEstimate{Path: rel, Missing: true})
			continue
		}
		fe := FileEstimate{Path: rel, Chars: tokens.CountChars(content), Tokens: tokens.Estimate(content)}
		out.Files = append(out.Files, fe)
		out.Total += fe.Tokens
	}
	return out, nil
}
