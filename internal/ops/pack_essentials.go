package ops

import (
	"path/filepath"

	"github.com/hpungsan/ctxpack/internal/budget"
	"github.com/hpungsan/ctxpack/internal/pack"
)

// PackEssentialsInput contains parameters for the PackEssentials operation.
type PackEssentialsInput struct {
	TaskInput
	// MaxTokens defaults to the configured MaxInputTokens.
	MaxTokens int
	OnMissing string
	// Policy, when set, overrides OnMissing.
	Policy   pack.MissingFilePolicy
	Manifest ManifestSource
}

// PackEssentialsOutput contains the packed essential files.
type PackEssentialsOutput struct {
	Text            string          `json:"text"`
	Loaded          []string        `json:"loaded"`
	Skipped         []string        `json:"skipped"`
	Decisions       []pack.Decision `json:"decisions"`
	TokensUsed      int             `json:"tokens_used"`
	TokensRemaining int             `json:"tokens_remaining"`
	MaxTokens       int             `json:"max_tokens"`
}

// PackEssentials loads only the task's essential files into a budget.
func PackEssentials(p *Project, input PackEssentialsInput) (*PackEssentialsOutput, error) {
	policy, err := PolicyFor(input.OnMissing, input.Policy)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolveEssentials(p, input.TaskInput)
	if err != nil {
		return nil, err
	}
	m, _, err := p.LoadManifest(input.Manifest)
	if err != nil {
		return nil, err
	}

	max := input.MaxTokens
	if max <= 0 {
		max = p.Config.MaxInputTokens
	}
	entries := make([]pack.Entry, len(resolved.Files))
	for i, rel := range resolved.Files {
		entries[i] = pack.Entry{Rel: rel, Abs: filepath.Join(p.Layout.Root, filepath.FromSlash(rel))}
	}

	b := budget.New(max)
	res, err := pack.Pack(entries, b, pack.Options{Policy: policy, Manifest: m, Logger: p.Logger})
	if err != nil {
		return nil, err
	}

	return &PackEssentialsOutput{
		Text:            res.Text(),
		Loaded:          nonNil(res.Loaded),
		Skipped:         nonNil(res.Skipped),
		Decisions:       res.Decisions,
		TokensUsed:      res.Used,
		TokensRemaining: b.Remaining(),
		MaxTokens:       max,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
