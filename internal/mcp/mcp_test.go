package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/ctxpack/internal/config"
	"github.com/hpungsan/ctxpack/internal/db"
	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/ops"
)

const testRun = "context_llm/code/20240101_120000"

// testSetup creates a project with one run directory and a manifest cache.
func testSetup(t *testing.T) *ops.Project {
	t.Helper()

	root := t.TempDir()
	for rel, content := range map[string]string{
		testRun + "/git_diff_cached.txt":             "diff --git a/x b/x",
		testRun + "/git_log.txt":                     "commit abc",
		"docs/guia_de_desenvolvimento.md":            "# Guia\n",
		"context_llm/common/shared.md":               "shared",
		"scripts/data/20240101_000000_manifest.json": `{"files": {"context_llm/common/shared.md": {"summary": "notes", "token_count": 2}}}`,
	} {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	p, err := ops.NewProject(root, config.DefaultConfig(), database, nil)
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	return p
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleAssemble(t *testing.T) {
	p := testSetup(t)
	h := NewHandlers(p)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "assemble task",
			args:      map[string]any{"task": "commit-message"},
			wantError: false,
		},
		{
			name:      "assemble include list",
			args:      map[string]any{"include": []any{"context_llm/common/shared.md"}},
			wantError: false,
		},
		{
			name:      "include escaping root",
			args:      map[string]any{"include": []any{"../etc/passwd"}},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "bad on_missing_essential",
			args:      map[string]any{"task": "commit-message", "on_missing_essential": "ask"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"max_tokens": "lots"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAssemble(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleAssemble_MissingEssential(t *testing.T) {
	p := testSetup(t)
	h := NewHandlers(p)
	if err := os.Remove(filepath.Join(p.Layout.Root, filepath.FromSlash(testRun+"/git_log.txt"))); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleAssemble(context.Background(), makeRequest(map[string]any{"task": "commit-message"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "MISSING_ESSENTIAL_FILE")

	result, err = h.HandleAssemble(context.Background(), makeRequest(map[string]any{
		"task":                 "commit-message",
		"on_missing_essential": "continue",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	loaded := output["loaded"].([]any)
	for _, l := range loaded {
		if l == testRun+"/git_log.txt" {
			t.Errorf("missing file reported as loaded")
		}
	}
}

func TestHandleAssemble_Exclude(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandleAssemble(context.Background(), makeRequest(map[string]any{
		"task":    "commit-message",
		"exclude": []any{"context_llm/common/*.md"},
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	for _, l := range output["loaded"].([]any) {
		if l == "context_llm/common/shared.md" {
			t.Errorf("excluded file reported as loaded")
		}
	}
}

func TestHandlePackEssentials(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandlePackEssentials(context.Background(), makeRequest(map[string]any{
		"task":       "commit-message",
		"max_tokens": 500,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if got := len(output["loaded"].([]any)); got != 3 {
		t.Errorf("loaded = %d files, want 3", got)
	}
	if output["max_tokens"].(float64) != 500 {
		t.Errorf("max_tokens = %v, want 500", output["max_tokens"])
	}
}

func TestHandleResolveEssentials(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandleResolveEssentials(context.Background(), makeRequest(map[string]any{"task": "commit-mesage"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	files := output["files"].([]any)
	if len(files) != 3 || files[0] != testRun+"/git_diff_cached.txt" {
		t.Errorf("files = %v", files)
	}

	result, _ = h.HandleResolveEssentials(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleSelectorPayload(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandleSelectorPayload(context.Background(), makeRequest(map[string]any{"task": "commit-message"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["manifest_files"].(float64) != 1 {
		t.Errorf("manifest_files = %v, want 1", output["manifest_files"])
	}

	result, _ = h.HandleSelectorPayload(context.Background(), makeRequest(map[string]any{
		"task":            "commit-message",
		"cached_manifest": true,
	}))
	assertErrorCode(t, result, "MANIFEST_REQUIRED")
}

func TestHandleEstimate(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandleEstimate(context.Background(), makeRequest(map[string]any{"text": "abcd"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["tokens"].(float64) != 2 {
		t.Errorf("tokens = %v, want 2", output["tokens"])
	}
}

func TestHandleFindDocsAndInspect(t *testing.T) {
	h := NewHandlers(testSetup(t))

	result, err := h.HandleFindDocs(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if got := len(output["docs"].([]any)); got != 1 {
		t.Errorf("docs = %d, want 1", got)
	}

	result, _ = h.HandleInspect(context.Background(), makeRequest(map[string]any{
		"text": "--- START OF FILE a.txt ---\nbody\n--- END OF FILE a.txt ---",
	}))
	output = parseOutput(t, result)
	if got := len(output["parts"].([]any)); got != 1 {
		t.Errorf("parts = %d, want 1", got)
	}

	result, _ = h.HandleInspect(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleManifestImportLookup(t *testing.T) {
	h := NewHandlers(testSetup(t))
	ctx := context.Background()

	result, _ := h.HandleManifestLookup(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, err := h.HandleManifestImport(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	imported := parseOutput(t, result)
	if imported["file_count"].(float64) != 1 {
		t.Errorf("file_count = %v, want 1", imported["file_count"])
	}

	result, _ = h.HandleManifestLookup(ctx, makeRequest(map[string]any{"path": "context_llm/common/shared.md"}))
	output := parseOutput(t, result)
	entry := output["entry"].(map[string]any)
	if entry["summary"] != "notes" {
		t.Errorf("summary = %v, want notes", entry["summary"])
	}

	result, _ = h.HandleManifestLookup(ctx, makeRequest(map[string]any{"path": "nope.txt"}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestServerRegistration(t *testing.T) {
	p := testSetup(t)

	s := NewServer(p, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"context_assemble",
		"context_pack_essentials",
		"context_resolve_essentials",
		"context_selector_payload",
		"context_estimate_tokens",
		"context_find_docs",
		"context_inspect",
		"manifest_import",
		"manifest_lookup",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	p := testSetup(t)
	p.Config.DisabledTools = []string{"context_inspect", "context_inspect", "manifest_lookup"}

	tools := NewServer(p, "test").ListTools()
	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	if _, ok := tools["context_inspect"]; ok {
		t.Error("disabled tool context_inspect should not be registered")
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	p := testSetup(t)
	p.Config.DisabledTypes = []string{"manifest"}

	tools := NewServer(p, "test").ListTools()
	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for name := range tools {
		if GetTypeForTool(name) == "manifest" {
			t.Errorf("tool %q of disabled type registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	p := testSetup(t)
	p.Config.DisabledTools = AllToolNames()

	if tools := NewServer(p, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"context_assemble", "fake_tool"}); len(unknown) != 1 {
		t.Errorf("ValidateDisabledTools() unknown = %v, want [fake_tool]", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"context", "capsule"}); len(unknown) != 1 || unknown[0] != "capsule" {
		t.Errorf("ValidateDisabledTypes() unknown = %v, want [capsule]", unknown)
	}
	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v", errObj["message"])
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	r := errorResult(fmt.Errorf("selector: %w", errors.NewMissingEssentialFile("docs/a.md")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrMissingEssentialFile) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrMissingEssentialFile)
	}
	want := "selector: essential file missing: docs/a.md; context build interrupted"
	if errObj["message"] != want {
		t.Errorf("message = %v, want %q", errObj["message"], want)
	}
	details := errObj["details"].(map[string]any)
	if details["path"] != "docs/a.md" {
		t.Errorf("details.path = %v", details["path"])
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code = %v, want INTERNAL", errObj["code"])
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if result == nil || !result.IsError {
		t.Errorf("expected error result with code %q", expectedCode)
		return
	}
	errorObj := errorObject(t, result)
	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
