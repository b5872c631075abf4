package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	project *ops.Project
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p *ops.Project) *Handlers {
	return &Handlers{project: p}
}

// Request types for each tool

// TaskArgs are the task selection arguments shared by several tools.
type TaskArgs struct {
	Task  string `json:"task,omitempty"`
	Issue string `json:"issue,omitempty"`
	AC    string `json:"ac,omitempty"`
	Doc   string `json:"doc,omitempty"`
	Run   string `json:"run,omitempty"`
}

func (a TaskArgs) input() ops.TaskInput {
	return ops.TaskInput{Task: a.Task, Issue: a.Issue, AC: a.AC, DocFile: a.Doc, Run: a.Run}
}

// AssembleRequest represents the arguments for context_assemble.
type AssembleRequest struct {
	TaskArgs
	Include        []string `json:"include,omitempty"`
	Exclude        []string `json:"exclude,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	OnMissing      string   `json:"on_missing_essential,omitempty"`
	Save           bool     `json:"save,omitempty"`
	ManifestPath   string   `json:"manifest_path,omitempty"`
	CachedManifest bool     `json:"cached_manifest,omitempty"`
}

// PackEssentialsRequest represents the arguments for context_pack_essentials.
type PackEssentialsRequest struct {
	TaskArgs
	MaxTokens    int    `json:"max_tokens,omitempty"`
	OnMissing    string `json:"on_missing_essential,omitempty"`
	ManifestPath string `json:"manifest_path,omitempty"`
}

// SelectorPayloadRequest represents the arguments for context_selector_payload.
type SelectorPayloadRequest struct {
	TaskArgs
	Template           string `json:"template,omitempty"`
	TemplatePath       string `json:"template_path,omitempty"`
	MaxEssentialTokens int    `json:"max_essential_tokens,omitempty"`
	OnMissing          string `json:"on_missing_essential,omitempty"`
	ManifestPath       string `json:"manifest_path,omitempty"`
	CachedManifest     bool   `json:"cached_manifest,omitempty"`
}

// EstimateRequest represents the arguments for context_estimate_tokens.
type EstimateRequest struct {
	Text  string   `json:"text,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

// InspectRequest represents the arguments for context_inspect.
type InspectRequest struct {
	Path string `json:"path,omitempty"`
	Text string `json:"text,omitempty"`
}

// ManifestImportRequest represents the arguments for manifest_import.
type ManifestImportRequest struct {
	Path string `json:"path,omitempty"`
	Keep int    `json:"keep,omitempty"`
}

// ManifestLookupRequest represents the arguments for manifest_lookup.
type ManifestLookupRequest struct {
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path,omitempty"`
}

// Handler implementations

// HandleAssemble handles the context_assemble tool call.
func (h *Handlers) HandleAssemble(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AssembleRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Assemble(ctx, h.project, ops.AssembleInput{
		TaskInput: input.input(),
		Include:   input.Include,
		Exclude:   input.Exclude,
		MaxTokens: input.MaxTokens,
		OnMissing: input.OnMissing,
		Manifest:  ops.ManifestSource{Path: input.ManifestPath, Cached: input.CachedManifest},
		Save:      input.Save,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePackEssentials handles the context_pack_essentials tool call.
func (h *Handlers) HandlePackEssentials(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PackEssentialsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PackEssentials(h.project, ops.PackEssentialsInput{
		TaskInput: input.input(),
		MaxTokens: input.MaxTokens,
		OnMissing: input.OnMissing,
		Manifest:  ops.ManifestSource{Path: input.ManifestPath},
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleResolveEssentials handles the context_resolve_essentials tool call.
func (h *Handlers) HandleResolveEssentials(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskArgs](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ResolveEssentials(h.project, input.input())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSelectorPayload handles the context_selector_payload tool call.
func (h *Handlers) HandleSelectorPayload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SelectorPayloadRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SelectorPayload(h.project, ops.SelectorPayloadInput{
		TaskInput:          input.input(),
		Template:           input.Template,
		TemplatePath:       input.TemplatePath,
		MaxEssentialTokens: input.MaxEssentialTokens,
		OnMissing:          input.OnMissing,
		Manifest:           ops.ManifestSource{Path: input.ManifestPath, Cached: input.CachedManifest},
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEstimate handles the context_estimate_tokens tool call.
func (h *Handlers) HandleEstimate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EstimateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Estimate(h.project, ops.EstimateInput{Text: input.Text, Paths: input.Paths})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFindDocs handles the context_find_docs tool call.
func (h *Handlers) HandleFindDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.FindDocs(h.project)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the context_inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Path == "" && input.Text == "" {
		return errorResult(errors.NewInvalidRequest("path or text is required")), nil
	}

	result, err := ops.Inspect(h.project, ops.InspectInput{Path: input.Path, Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleManifestImport handles the manifest_import tool call.
func (h *Handlers) HandleManifestImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ManifestImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ImportManifest(ctx, h.project, ops.ImportManifestInput{Path: input.Path, Keep: input.Keep})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleManifestLookup handles the manifest_lookup tool call.
func (h *Handlers) HandleManifestLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ManifestLookupRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.LookupManifest(h.project, ops.LookupManifestInput{
		SnapshotID: input.SnapshotID,
		Path:       input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if ce, ok := errors.As(err); ok {
		msg := ce.Message
		// Keep wrapper context ("pack: ...") in front of the message.
		if full := err.Error(); full != ce.Error() {
			msg = strings.TrimSuffix(full, ce.Error()) + msg
		}
		errorObj := map[string]any{
			"code":    ce.Code,
			"message": msg,
			"status":  ce.Status,
		}
		if ce.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if ce.Details != nil {
			errorObj["details"] = ce.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
