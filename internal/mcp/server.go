package mcp

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/ctxpack/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"context", "manifest"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"context_assemble": {
		def:     assembleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAssemble },
	},
	"context_pack_essentials": {
		def:     packEssentialsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackEssentials },
	},
	"context_resolve_essentials": {
		def:     resolveEssentialsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResolveEssentials },
	},
	"context_selector_payload": {
		def:     selectorPayloadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectorPayload },
	},
	"context_estimate_tokens": {
		def:     estimateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEstimate },
	},
	"context_find_docs": {
		def:     findDocsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFindDocs },
	},
	"context_inspect": {
		def:     inspectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInspect },
	},
	"manifest_import": {
		def:     manifestImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManifestImport },
	},
	"manifest_lookup": {
		def:     manifestLookupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManifestLookup },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "manifest_import" → "manifest").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the context tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes of the
// project config are excluded from registration.
func NewServer(p *ops.Project, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ctxpack",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(p)
	cfg := p.Config

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			p.Logger.Debug("tool disabled", "tool", name)
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(p *ops.Project, version string) error {
	s := NewServer(p, version)
	return server.ServeStdio(s)
}
