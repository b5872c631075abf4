package manifest

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ctxerrors "github.com/hpungsan/ctxpack/internal/errors"
)

const sample = `{
  "files": {
    "context_llm/code/a.txt": {"type": "text", "summary": "Summary A", "token_count": 120, "summary_token_count": 4},
    "docs/b.md": {"type": "doc", "summary": null, "token_count": 30},
    "c.json": {"type": "json"},
    "bad": 42
  }
}`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "20240101_120000_manifest.json")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	m := Load(writeManifest(t, sample), nil)
	if m == nil {
		t.Fatal("Load() = nil")
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (non-object entry dropped)", m.Len())
	}

	md, ok := m.Get("context_llm/code/a.txt")
	if !ok {
		t.Fatal("Get(a.txt) not found")
	}
	if md.SummaryText() != "Summary A" || !md.HasSummary() {
		t.Errorf("summary = %q", md.SummaryText())
	}
	if md.SummaryTokens() != 4 {
		t.Errorf("SummaryTokens() = %d, want 4", md.SummaryTokens())
	}
	if n, ok := m.TokenCount("context_llm/code/a.txt"); !ok || n != 120 {
		t.Errorf("TokenCount() = %d, %v", n, ok)
	}

	b, _ := m.Get("docs/b.md")
	if b.HasSummary() {
		t.Error("null summary reported as present")
	}
	if _, ok := m.TokenCount("c.json"); ok {
		t.Error("TokenCount(c.json) ok = true for absent count")
	}
}

func TestLoad_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		log  string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.json") }, "manifest not found"},
		{"invalid json", func(t *testing.T) string { return writeManifest(t, "{not json") }, "manifest invalid"},
		{"no files key", func(t *testing.T) string { return writeManifest(t, `{"other": {}}`) }, "manifest invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			if m := Load(tt.path(t), logger); m != nil {
				t.Errorf("Load() = %v, want nil", m)
			}
			if !strings.Contains(buf.String(), tt.log) {
				t.Errorf("log = %q, want %q", buf.String(), tt.log)
			}
		})
	}
}

func TestSummaryTokens_EstimatesWhenCountMissing(t *testing.T) {
	s := strings.Repeat("x", 38)
	md := FileMetadata{Summary: &s}
	if got := md.SummaryTokens(); got != 10 {
		t.Errorf("SummaryTokens() = %d, want 10", got)
	}
}

func TestParse_NegativeCountsAreAbsent(t *testing.T) {
	m, err := Parse([]byte(`{"files": {"a.txt": {"summary": "` + strings.Repeat("s", 38) + `", "token_count": -1, "summary_token_count": -5}}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n, ok := m.TokenCount("a.txt"); ok {
		t.Errorf("TokenCount() = %d, true; want absent", n)
	}
	md, _ := m.Get("a.txt")
	if got := md.SummaryTokens(); got != 10 {
		t.Errorf("SummaryTokens() = %d, want estimate 10", got)
	}

	// Metadata built outside Parse is guarded as well.
	neg := -3
	direct := &Manifest{Files: map[string]FileMetadata{"b.txt": {TokenCount: &neg, SummaryTokenCount: &neg}}}
	if _, ok := direct.TokenCount("b.txt"); ok {
		t.Error("TokenCount() ok = true for negative count")
	}
	if got := direct.Files["b.txt"].SummaryTokens(); got != 0 {
		t.Errorf("SummaryTokens() = %d, want 0", got)
	}
}

func TestNilManifest(t *testing.T) {
	var m *Manifest
	if _, ok := m.Get("a"); ok {
		t.Error("Get on nil manifest ok = true")
	}
	if m.Len() != 0 || m.Paths() != nil {
		t.Error("nil manifest not empty")
	}
	if got := m.Without([]string{"a"}); got.Len() != 0 {
		t.Error("Without on nil manifest not empty")
	}
}

func TestGet_NormalizesKey(t *testing.T) {
	m, err := Parse([]byte(`{"files": {"docs/a.md": {"token_count": 1}}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for _, p := range []string{"docs/a.md", "./docs/a.md", `docs\a.md`} {
		if _, ok := m.Get(p); !ok {
			t.Errorf("Get(%q) not found", p)
		}
	}
}

func TestWithoutAndPaths(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rest := m.Without([]string{"docs/b.md"})
	want := []string{"c.json", "context_llm/code/a.txt"}
	got := rest.Paths()
	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if m.Len() != 3 {
		t.Error("Without mutated the receiver")
	}

	js, err := rest.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if strings.Contains(js, "docs/b.md") || !strings.Contains(js, `"context_llm/code/a.txt"`) {
		t.Errorf("JSON() = %s", js)
	}
}

func TestRequire(t *testing.T) {
	if _, err := Require(nil, "x.json"); !ctxerrors.Is(err, ctxerrors.ErrManifestRequired) {
		t.Errorf("Require(nil) error = %v", err)
	}
	m := &Manifest{}
	if got, err := Require(m, ""); err != nil || got != m {
		t.Errorf("Require(m) = %v, %v", got, err)
	}
}
