package parts

import (
	"fmt"
	"strings"
)

const (
	startPrefix          = "--- START OF FILE "
	startEssentialPrefix = "--- START OF ESSENTIAL FILE "
	lineSuffix           = " ---"
)

// Parse splits a bundle back into parts. Text between blocks is ignored.
// Every block must close with an end line naming the same path and
// qualifier as its start line.
func Parse(text string) ([]Part, error) {
	lines := strings.Split(text, "\n")
	var out []Part

	for i := 0; i < len(lines); i++ {
		path, essential, ok := parseStart(lines[i])
		if !ok {
			continue
		}
		startLine := i + 1
		end := EndLine(path, essential)
		i++

		var summary string
		hasSummary := false
		if i < len(lines) && lines[i] == summaryStart {
			j := i + 1
			for j < len(lines) && lines[j] != summaryEnd {
				j++
			}
			if j == len(lines) {
				return nil, fmt.Errorf("line %d: unterminated summary for %s", startLine, path)
			}
			summary = strings.Join(lines[i+1:j], "\n")
			hasSummary = true
			i = j + 1
		}

		bodyStart := i
		for i < len(lines) && lines[i] != end {
			if _, _, nested := parseStart(lines[i]); nested {
				return nil, fmt.Errorf("line %d: block for %s not closed before next block", startLine, path)
			}
			if isEndLine(lines[i]) {
				return nil, fmt.Errorf("line %d: end line %q does not match start of %s", i+1, lines[i], path)
			}
			i++
		}
		if i == len(lines) {
			return nil, fmt.Errorf("line %d: missing %q", startLine, end)
		}

		body := strings.Join(lines[bodyStart:i], "\n")
		out = append(out, classify(path, essential, body, summary, hasSummary))
	}
	return out, nil
}

func classify(path string, essential bool, body, summary string, hasSummary bool) Part {
	switch {
	case hasSummary && (body == summary || body == ""):
		return NewSummary(path, summary, essential)
	case strings.HasSuffix(body, "\n"+TruncationMarker):
		return Part{Path: path, Kind: Truncated, Essential: essential, Body: body}
	default:
		return NewFull(path, body, summary, essential)
	}
}

func parseStart(line string) (path string, essential bool, ok bool) {
	if !strings.HasSuffix(line, lineSuffix) {
		return "", false, false
	}
	if len(line) < len(startPrefix)+len(lineSuffix) {
		return "", false, false
	}
	switch {
	case strings.HasPrefix(line, startEssentialPrefix) && len(line) >= len(startEssentialPrefix)+len(lineSuffix):
		path = line[len(startEssentialPrefix) : len(line)-len(lineSuffix)]
		essential = true
	case strings.HasPrefix(line, startPrefix):
		path = line[len(startPrefix) : len(line)-len(lineSuffix)]
	default:
		return "", false, false
	}
	if path == "" {
		return "", false, false
	}
	return path, essential, true
}

func isEndLine(line string) bool {
	return strings.HasSuffix(line, lineSuffix) &&
		(strings.HasPrefix(line, "--- END OF FILE ") || strings.HasPrefix(line, "--- END OF ESSENTIAL FILE "))
}
