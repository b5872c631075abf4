// Package docs finds project documentation files for doc-oriented tasks.
package docs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Doc is one documentation file. Title is its first heading, if any.
type Doc struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// rootDocs are picked up from the project root.
var rootDocs = []string{"README.md", "CHANGELOG.md"}

// Find returns README.md, CHANGELOG.md and every docs/**/*.md under root,
// relative with forward slashes, sorted.
func Find(root string) ([]Doc, error) {
	seen := make(map[string]bool)
	var rels []string

	for _, name := range rootDocs {
		if info, err := os.Stat(filepath.Join(root, name)); err == nil && info.Mode().IsRegular() {
			seen[name] = true
			rels = append(rels, name)
		}
	}

	docsDir := filepath.Join(root, "docs")
	if info, err := os.Stat(docsDir); err == nil && info.IsDir() {
		err := filepath.WalkDir(docsDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(p), ".md") {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				seen[rel] = true
				rels = append(rels, rel)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(rels)
	out := make([]Doc, len(rels))
	for i, rel := range rels {
		out[i] = Doc{Path: rel}
		if data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
			out[i].Title = Title(data)
		}
	}
	return out, nil
}

// Title returns the text of the first heading in a markdown document.
func Title(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(inlineText(h, src))
		return ast.WalkStop, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
