package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/ctxpack/internal/assemble"
	"github.com/hpungsan/ctxpack/internal/budget"
	"github.com/hpungsan/ctxpack/internal/pack"
)

// AssembleInput contains parameters for the Assemble operation.
type AssembleInput struct {
	TaskInput
	// Include, when non-nil, replaces the context directory scan with
	// exactly these project-relative paths.
	Include []string
	// Exclude adds paths, globs or directories to the configured exclusions
	// for this call only.
	Exclude []string
	// MaxTokens defaults to the configured MaxInputTokens.
	MaxTokens int
	OnMissing string
	// Policy, when set, overrides OnMissing.
	Policy   pack.MissingFilePolicy
	Manifest ManifestSource
	// Save writes the bundle under OutputDir/<task>/.
	Save bool
}

// AssembleOutput contains the assembled bundle.
type AssembleOutput struct {
	Text            string            `json:"text"`
	Loaded          []string          `json:"loaded"`
	Decisions       []pack.Decision   `json:"decisions"`
	TokensUsed      int               `json:"tokens_used"`
	TokensRemaining int               `json:"tokens_remaining"`
	MaxTokens       int               `json:"max_tokens"`
	ManifestSource  string            `json:"manifest_source,omitempty"`
	Bundle          *SaveBundleOutput `json:"bundle,omitempty"`
}

// Assemble builds the full context bundle for a task: its essential files
// first, then the selected or scanned candidates degraded to fit.
func Assemble(ctx context.Context, p *Project, input AssembleInput) (*AssembleOutput, error) {
	policy, err := PolicyFor(input.OnMissing, input.Policy)
	if err != nil {
		return nil, err
	}

	if err := validateRun(input.Run); err != nil {
		return nil, err
	}

	var essentialFiles []string
	if input.Task != "" {
		resolved, err := ResolveEssentials(p, input.TaskInput)
		if err != nil {
			return nil, err
		}
		essentialFiles = resolved.Files
	}

	var include []string
	if input.Include != nil {
		include, err = ValidateRelPaths(p.Layout.Root, input.Include)
		if err != nil {
			return nil, err
		}
	}

	m, source, err := p.LoadManifest(input.Manifest)
	if err != nil {
		return nil, err
	}

	max := input.MaxTokens
	if max <= 0 {
		max = p.Config.MaxInputTokens
	}

	res, err := assemble.Assemble(ctx, assemble.Options{
		Root:       p.Layout.Root,
		PrimaryDir: p.runDir(input.TaskInput),
		CommonDir:  p.Layout.CommonDir,
		Extensions: p.Config.ContextExtensions,
		Exclude:    mergeExclude(p.Config.Exclude, input.Exclude),
		Include:    include,
		Budget:     budget.New(max),
		Essentials: essentialFiles,
		Policy:     policy,
		Manifest:   m,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, err
	}

	out := &AssembleOutput{
		Text:            res.Text(),
		Loaded:          nonNil(res.Loaded),
		Decisions:       res.Decisions,
		TokensUsed:      res.Used,
		TokensRemaining: res.Remaining,
		MaxTokens:       max,
		ManifestSource:  source,
	}

	if input.Save {
		task := input.Task
		if task == "" {
			task = "assemble"
		}
		saved, err := SaveBundle(p, SaveBundleInput{Task: task, Content: out.Text})
		if err != nil {
			return nil, err
		}
		out.Bundle = saved
	}

	p.Logger.Info("context assembled",
		"task", input.Task,
		"files", len(out.Loaded),
		"tokens_used", out.TokensUsed,
		"tokens_remaining", out.TokensRemaining)
	return out, nil
}

// mergeExclude returns the configured exclusions followed by the per-call
// ones, without duplicates.
func mergeExclude(configured, extra []string) []string {
	if len(extra) == 0 {
		return configured
	}
	seen := make(map[string]bool, len(configured)+len(extra))
	out := make([]string, 0, len(configured)+len(extra))
	for _, e := range append(append([]string{}, configured...), extra...) {
		if e = strings.TrimSpace(e); e != "" && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
