// Package pack loads a task's essential files into a token budget.
package pack

import (
	"log/slog"

	"github.com/hpungsan/ctxpack/internal/budget"
	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/manifest"
	"github.com/hpungsan/ctxpack/internal/parts"
	"github.com/hpungsan/ctxpack/internal/textfile"
	"github.com/hpungsan/ctxpack/internal/tokens"
)

// MinUsefulTokens is the smallest remaining budget worth truncating into.
const MinUsefulTokens = 50

// MissingFilePolicy decides what to do when an essential file is absent.
// Returning true continues without the file; false aborts the build.
type MissingFilePolicy func(rel string) bool

// Abort is the policy that stops on the first missing file.
func Abort(string) bool { return false }

// Continue is the policy that skips missing files.
func Continue(string) bool { return true }

// Entry is one essential file, relative and absolute.
type Entry struct {
	Rel string
	Abs string
}

// Options configures Pack.
type Options struct {
	// Policy handles missing files. Nil aborts.
	Policy MissingFilePolicy
	// Manifest, when set, supplies summary headers for full parts.
	Manifest *manifest.Manifest
	Logger   *slog.Logger
}

// Result is the packed essential content.
type Result struct {
	Parts     []parts.Part
	Loaded    []string
	Skipped   []string
	Decisions []Decision
	Used      int
}

// Text renders the parts as one bundle.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return parts.Join(r.Parts)
}

// IsLoaded reports whether rel made it into the result.
func (r *Result) IsLoaded(rel string) bool {
	if r == nil {
		return false
	}
	for _, l := range r.Loaded {
		if l == rel {
			return true
		}
	}
	return false
}

// Pack loads entries in order against b.
//
// A file that fits is emitted whole. When one does not fit and at least
// MinUsefulTokens remain, it is truncated to the remaining budget and the
// essential phase ends: the budget is exhausted and later entries are
// skipped. Below that floor the file is skipped and packing continues.
//
// A missing file consults the policy; an abort returns a
// MISSING_ESSENTIAL_FILE error and no result.
func Pack(entries []Entry, b *budget.Budget, opts Options) (*Result, error) {
	logger := logging.OrNop(opts.Logger)
	policy := opts.Policy
	if policy == nil {
		policy = Abort
	}

	start := b.Used()
	res := &Result{}
	exhaustedLogged := false

	for _, e := range entries {
		if b.Exhausted() {
			if !exhaustedLogged {
				logger.Info("essential budget exhausted, skipping remaining files",
					"budget", b.Max(), "next", e.Rel)
				exhaustedLogged = true
			}
			res.skip(e.Rel, 0, b, "budget exhausted")
			continue
		}

		if !textfile.IsRegular(e.Abs) {
			if !policy(e.Rel) {
				logger.Error("essential file missing, aborting", "path", e.Rel)
				return nil, errors.NewMissingEssentialFile(e.Rel)
			}
			logger.Warn("continuing without missing essential file", "path", e.Rel)
			res.Decisions = append(res.Decisions, Decision{
				Path: e.Rel, Action: ActionMissing, Essential: true, RemainingAfter: b.Remaining(),
			})
			continue
		}

		content, err := textfile.Read(e.Abs)
		if err != nil {
			logger.Warn("essential file unreadable, skipping", "path", e.Rel, "error", err)
			res.skip(e.Rel, 0, b, "unreadable")
			continue
		}
		est := tokens.Estimate(content)

		switch {
		case b.Fits(est):
			summary := ""
			if md, ok := opts.Manifest.Get(e.Rel); ok && md.HasSummary() {
				summary = md.SummaryText()
			}
			if err := b.Spend(est); err != nil {
				return nil, errors.NewInternal(err)
			}
			res.add(parts.NewFull(e.Rel, content, summary, true), Decision{
				Path: e.Rel, Action: ActionFull, Essential: true,
				OriginalTokens: est, EmittedTokens: est, RemainingAfter: b.Remaining(),
			})
			logger.Debug("essential file loaded", "path", e.Rel, "tokens", est, "remaining", b.Remaining())

		case b.Remaining() < MinUsefulTokens:
			logger.Info("essential file skipped, remaining budget too small for useful content",
				"path", e.Rel, "estimated_tokens", est, "remaining", b.Remaining())
			res.skip(e.Rel, est, b, "remaining budget too small")

		default:
			allowance := b.Remaining()
			logger.Info("essential file will be truncated to fit budget",
				"path", e.Rel, "estimated_tokens", est, "budget", allowance)
			prefix := tokens.Prefix(content, tokens.CharsFor(allowance-parts.MarkerTokens()))
			p := parts.NewTruncated(e.Rel, prefix, true)
			b.Exhaust()
			res.add(p, Decision{
				Path: e.Rel, Action: ActionTruncated, Essential: true,
				OriginalTokens: est, EmittedTokens: p.Tokens(), RemainingAfter: 0,
			})
			logger.Info("essential content truncated", "path", e.Rel, "emitted_tokens", p.Tokens())
		}
	}

	res.Used = b.Used() - start
	return res, nil
}

func (r *Result) add(p parts.Part, d Decision) {
	r.Parts = append(r.Parts, p)
	r.Loaded = append(r.Loaded, p.Path)
	r.Decisions = append(r.Decisions, d)
}

func (r *Result) skip(rel string, est int, b *budget.Budget, reason string) {
	r.Skipped = append(r.Skipped, rel)
	r.Decisions = append(r.Decisions, Decision{
		Path: rel, Action: ActionSkipped, Essential: true,
		OriginalTokens: est, RemainingAfter: b.Remaining(), Reason: reason,
	})
}
