// Package parts renders and parses the delimited file blocks that make up a
// context bundle.
//
// Block layout:
//
//	--- START OF [ESSENTIAL ]FILE <path> ---
//	[--- SUMMARY ---
//	<summary>
//	--- END SUMMARY ---]
//	<body>
//	--- END OF [ESSENTIAL ]FILE <path> ---
package parts

import (
	"fmt"
	"strings"

	"github.com/hpungsan/ctxpack/internal/tokens"
)

// TruncationMarker is appended (after a newline) to every truncated body.
const TruncationMarker = "... [CONTENT TRUNCATED TO FIT TOKEN LIMIT] ..."

const (
	summaryStart = "--- SUMMARY ---"
	summaryEnd   = "--- END SUMMARY ---"
)

// Kind tags how a file's content was represented.
type Kind int

const (
	Full Kind = iota
	Summary
	Truncated
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "full"
	case Summary:
		return "summary"
	case Truncated:
		return "truncated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Part is one file block in a bundle.
//
// For Full parts Summary is an optional header shown before the body. For
// Summary parts Body and Summary hold the same text, and the summary is
// written both as the header and as the body. For Truncated parts Body
// ends with "\n" + TruncationMarker.
type Part struct {
	Path      string
	Kind      Kind
	Essential bool
	Body      string
	Summary   string
}

// NewFull builds a full-content part. summary may be empty.
func NewFull(path, content, summary string, essential bool) Part {
	return Part{Path: path, Kind: Full, Essential: essential, Body: content, Summary: summary}
}

// NewSummary builds a part that carries only the summary.
func NewSummary(path, summary string, essential bool) Part {
	return Part{Path: path, Kind: Summary, Essential: essential, Body: summary, Summary: summary}
}

// NewTruncated builds a part from a content prefix, appending the marker.
func NewTruncated(path, prefix string, essential bool) Part {
	return Part{Path: path, Kind: Truncated, Essential: essential, Body: prefix + "\n" + TruncationMarker}
}

// MarkerTokens is the estimated cost of the truncation suffix.
func MarkerTokens() int {
	return tokens.Estimate("\n" + TruncationMarker)
}

// StartLine returns the opening delimiter for path.
func StartLine(path string, essential bool) string {
	if essential {
		return "--- START OF ESSENTIAL FILE " + path + " ---"
	}
	return "--- START OF FILE " + path + " ---"
}

// EndLine returns the closing delimiter for path. It always echoes the
// start line's qualifier and path.
func EndLine(path string, essential bool) string {
	if essential {
		return "--- END OF ESSENTIAL FILE " + path + " ---"
	}
	return "--- END OF FILE " + path + " ---"
}

// String renders the block.
func (p Part) String() string {
	var sb strings.Builder
	sb.WriteString(StartLine(p.Path, p.Essential))
	sb.WriteString("\n")

	switch p.Kind {
	case Summary:
		writeSummary(&sb, p.Summary)
		sb.WriteString(p.Summary)
	case Full:
		if p.Summary != "" && p.Body != "" {
			writeSummary(&sb, p.Summary)
		}
		sb.WriteString(p.Body)
	default:
		sb.WriteString(p.Body)
	}

	sb.WriteString("\n")
	sb.WriteString(EndLine(p.Path, p.Essential))
	return sb.String()
}

// Tokens estimates the rendered body cost (delimiters excluded).
func (p Part) Tokens() int {
	if p.Kind == Summary {
		return tokens.Estimate(p.Summary)
	}
	return tokens.Estimate(p.Body)
}

func writeSummary(sb *strings.Builder, summary string) {
	sb.WriteString(summaryStart)
	sb.WriteString("\n")
	sb.WriteString(summary)
	sb.WriteString("\n")
	sb.WriteString(summaryEnd)
	sb.WriteString("\n")
}

// Join renders parts separated by a blank line.
func Join(ps []Part) string {
	blocks := make([]string, len(ps))
	for i, p := range ps {
		blocks[i] = p.String()
	}
	return strings.Join(blocks, "\n\n")
}
