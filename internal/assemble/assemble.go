// Package assemble builds a context bundle: essential files first, then
// candidate files degraded (full, summary, truncated, skipped) to fit the
// remaining budget.
package assemble

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/hpungsan/ctxpack/internal/budget"
	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/manifest"
	"github.com/hpungsan/ctxpack/internal/pack"
	"github.com/hpungsan/ctxpack/internal/parts"
	"github.com/hpungsan/ctxpack/internal/textfile"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// ActionDuplicate marks a candidate already emitted earlier in the bundle.
const ActionDuplicate pack.Action = "duplicate"

// Options configures one assembly.
type Options struct {
	// Root is the project root; all paths are relative to it.
	Root string
	// PrimaryDir and CommonDir are scanned, in that order, when Include is nil.
	PrimaryDir string
	CommonDir  string
	// Extensions is the scan allow-list (".txt", ".md", ...).
	Extensions []string
	// Exclude is never included, essential or not.
	Exclude []string
	// Include, when non-nil, replaces the directory scan with exactly these
	// relative paths, in order.
	Include []string
	// Budget is shared by the essential and candidate phases. Required.
	Budget *budget.Budget
	// Essentials are the task's required files in priority order.
	Essentials []string
	// Policy handles missing essential files. Nil aborts.
	Policy   pack.MissingFilePolicy
	Manifest *manifest.Manifest
	Logger   *slog.Logger
}

// Result is an assembled bundle with the decision made for each file.
type Result struct {
	Parts     []parts.Part
	Decisions []pack.Decision
	Loaded    []string
	Remaining int
	Used      int
}

// Text renders the bundle.
func (r *Result) Text() string {
	return parts.Join(r.Parts)
}

// Assemble runs the essential packer and then folds in candidates against
// what is left of opts.Budget. A missing essential file under an aborting
// policy returns its error and no result.
func Assemble(ctx context.Context, opts Options) (*Result, error) {
	if opts.Budget == nil {
		return nil, errors.NewInvalidRequest("budget is required")
	}
	logger := logging.OrNop(opts.Logger)
	b := opts.Budget
	start := b.Used()
	excl := NewExcluder(opts.Exclude)
	res := &Result{}

	essentialSet := make(map[string]bool, len(opts.Essentials))
	entries := make([]pack.Entry, 0, len(opts.Essentials))
	for _, raw := range opts.Essentials {
		rel := manifest.NormalizeKey(raw)
		if excl.Excluded(rel) {
			logger.Info("essential file excluded", "path", rel)
			res.Decisions = append(res.Decisions, pack.Decision{
				Path: rel, Action: pack.ActionExcluded, Essential: true, RemainingAfter: b.Remaining(),
			})
			continue
		}
		essentialSet[rel] = true
		entries = append(entries, pack.Entry{Rel: rel, Abs: filepath.Join(opts.Root, filepath.FromSlash(rel))})
	}

	packed, err := pack.Pack(entries, b, pack.Options{
		Policy:   opts.Policy,
		Manifest: opts.Manifest,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	res.Parts = append(res.Parts, packed.Parts...)
	res.Loaded = append(res.Loaded, packed.Loaded...)
	res.Decisions = append(res.Decisions, packed.Decisions...)

	var cands []candidate
	if opts.Include != nil {
		cands = gatherInclude(opts.Root, opts.Include, logger)
	} else {
		cands = gatherScan(opts.Root, []string{opts.PrimaryDir, opts.CommonDir}, opts.Extensions, logger)
	}

	emitted := make(map[string]bool, len(res.Loaded)+len(cands))
	for _, l := range res.Loaded {
		emitted[l] = true
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("assemble")
		}
		if excl.Excluded(c.rel) {
			logger.Debug("file excluded", "path", c.rel)
			res.Decisions = append(res.Decisions, pack.Decision{
				Path: c.rel, Action: pack.ActionExcluded, Essential: essentialSet[c.rel], RemainingAfter: b.Remaining(),
			})
			continue
		}
		if emitted[c.rel] {
			res.Decisions = append(res.Decisions, pack.Decision{
				Path: c.rel, Action: ActionDuplicate, Essential: essentialSet[c.rel], RemainingAfter: b.Remaining(),
			})
			continue
		}

		if c.missing {
			res.skip(c.rel, essentialSet[c.rel], b, "not found")
			continue
		}
		content, err := textfile.Read(c.abs)
		if err != nil {
			logger.Warn("file unreadable, skipping", "path", c.rel, "error", err)
			res.skip(c.rel, essentialSet[c.rel], b, "unreadable")
			continue
		}
		unit := FileProcessUnit{RelPath: c.rel, AbsPath: c.abs, RawContent: content, IsEssential: essentialSet[c.rel]}

		part, d, ok, err := degrade(unit, b, opts.Manifest, logger)
		if err != nil {
			return nil, err
		}
		res.Decisions = append(res.Decisions, d)
		if !ok {
			continue
		}
		emitted[c.rel] = true
		res.Parts = append(res.Parts, part)
		res.Loaded = append(res.Loaded, c.rel)
	}

	res.Remaining = b.Remaining()
	res.Used = b.Used() - start
	return res, nil
}

func (r *Result) skip(rel string, essential bool, b *budget.Budget, reason string) {
	r.Decisions = append(r.Decisions, pack.Decision{
		Path: rel, Action: pack.ActionSkipped, Essential: essential,
		RemainingAfter: b.Remaining(), Reason: reason,
	})
}

// degrade picks the richest representation of u that fits b.
func degrade(u FileProcessUnit, b *budget.Budget, m *manifest.Manifest, logger *slog.Logger) (parts.Part, pack.Decision, bool, error) {
	md, _ := m.Get(u.RelPath)
	cost, ok := m.TokenCount(u.RelPath)
	if !ok {
		cost = tokens.Estimate(u.RawContent)
	}
	d := pack.Decision{Path: u.RelPath, Essential: u.IsEssential, OriginalTokens: cost}

	switch {
	case b.Fits(cost):
		if err := b.Spend(cost); err != nil {
			return parts.Part{}, d, false, errors.NewInternal(err)
		}
		d.Action, d.EmittedTokens = pack.ActionFull, cost
		d.RemainingAfter = b.Remaining()
		logger.Debug("file loaded", "path", u.RelPath, "tokens", cost, "remaining", b.Remaining())
		summary := ""
		if md.HasSummary() {
			summary = md.SummaryText()
		}
		return parts.NewFull(u.RelPath, u.RawContent, summary, u.IsEssential), d, true, nil

	case md.HasSummary() && b.Fits(md.SummaryTokens()):
		st := md.SummaryTokens()
		if err := b.Spend(st); err != nil {
			return parts.Part{}, d, false, errors.NewInternal(err)
		}
		d.Action, d.EmittedTokens = pack.ActionSummary, st
		d.RemainingAfter = b.Remaining()
		logger.Info("file replaced by summary",
			"path", u.RelPath, "original_tokens", cost, "summary_tokens", st)
		return parts.NewSummary(u.RelPath, md.SummaryText(), u.IsEssential), d, true, nil

	case b.Remaining() > pack.MinUsefulTokens:
		allowance := b.Exhaust()
		prefix := tokens.Prefix(u.RawContent, tokens.CharsFor(allowance-parts.MarkerTokens()))
		p := parts.NewTruncated(u.RelPath, prefix, u.IsEssential)
		d.Action, d.EmittedTokens = pack.ActionTruncated, p.Tokens()
		logger.Info("file truncated",
			"path", u.RelPath, "original_tokens", cost, "emitted_tokens", p.Tokens(), "budget", allowance)
		return p, d, true, nil

	default:
		d.Action = pack.ActionSkipped
		d.RemainingAfter = b.Remaining()
		d.Reason = "budget exhausted"
		logger.Info("file skipped, budget exhausted",
			"path", u.RelPath, "original_tokens", cost, "remaining", b.Remaining())
		return parts.Part{}, d, false, nil
	}
}
