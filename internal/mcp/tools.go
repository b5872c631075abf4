package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Shared argument options.

func taskArgs(required bool) []mcp.ToolOption {
	taskOpts := []mcp.PropertyOption{mcp.Description("Task name, e.g. commit-message or resolve-ac")}
	if required {
		taskOpts = append(taskOpts, mcp.Required())
	}
	return []mcp.ToolOption{
		mcp.WithString("task", taskOpts...),
		mcp.WithString("issue", mcp.Description("Issue number for {issue} templates")),
		mcp.WithString("ac", mcp.Description("Acceptance criterion number for {ac} templates")),
		mcp.WithString("doc", mcp.Description("Target document for update-doc, relative to the project root")),
		mcp.WithString("run", mcp.Description("Run directory name (YYYYMMDD_HHMMSS). Default: the newest run")),
	}
}

var onMissingArg = mcp.WithString("on_missing_essential",
	mcp.Description("What to do when an essential file is missing. Default: abort"),
	mcp.Enum("abort", "continue"),
)

var manifestArgs = []mcp.ToolOption{
	mcp.WithString("manifest_path", mcp.Description("Manifest file. Default: newest YYYYMMDD_HHMMSS_manifest.json")),
	mcp.WithBoolean("cached_manifest", mcp.Description("Use the latest imported manifest snapshot")),
}

func tool(name, description string, groups ...[]mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, g := range groups {
		opts = append(opts, g...)
	}
	return mcp.NewTool(name, opts...)
}

var assembleToolDef = tool("context_assemble",
	"Build a context bundle for a task: essential files first, then the given or scanned files, degraded to summaries or truncated to fit the token budget.",
	taskArgs(false),
	[]mcp.ToolOption{
		mcp.WithArray("include", mcp.Description("Exact files to include instead of scanning the context directories"), mcp.WithStringItems()),
		mcp.WithArray("exclude", mcp.Description("Paths, globs or directories to leave out, on top of the configured exclude list"), mcp.WithStringItems()),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget. Default: max_input_tokens from config")),
		onMissingArg,
		mcp.WithBoolean("save", mcp.Description("Also write the bundle to the output directory")),
	},
	manifestArgs,
)

var packEssentialsToolDef = tool("context_pack_essentials",
	"Load only a task's essential files into a token budget.",
	taskArgs(true),
	[]mcp.ToolOption{
		mcp.WithNumber("max_tokens", mcp.Description("Token budget. Default: max_input_tokens from config")),
		onMissingArg,
		mcp.WithString("manifest_path", mcp.Description("Manifest supplying summary headers")),
	},
)

var resolveEssentialsToolDef = tool("context_resolve_essentials",
	"List the essential files a task needs, without reading them.",
	taskArgs(true),
)

var selectorPayloadToolDef = tool("context_selector_payload",
	"Build the prompt that asks a model to pick relevant files: the task's essential files plus the manifest of everything else. Requires a manifest.",
	taskArgs(true),
	[]mcp.ToolOption{
		mcp.WithString("template", mcp.Description("Prompt template containing {{ESSENTIAL_FILES_CONTENT}} and {{REMAINING_MANIFEST_JSON}}")),
		mcp.WithString("template_path", mcp.Description("Template file, used when template is empty")),
		mcp.WithNumber("max_essential_tokens", mcp.Description("Budget for embedded essentials. Default: selector_essential_tokens from config")),
		onMissingArg,
	},
	manifestArgs,
)

var estimateToolDef = tool("context_estimate_tokens",
	"Estimate tokens (characters / 3.8, rounded up) for text and project files.",
	[]mcp.ToolOption{
		mcp.WithString("text", mcp.Description("Text to estimate")),
		mcp.WithArray("paths", mcp.Description("Project-relative files to estimate"), mcp.WithStringItems()),
	},
)

var findDocsToolDef = tool("context_find_docs",
	"List README, CHANGELOG and docs/**/*.md with their first heading.",
)

var inspectToolDef = tool("context_inspect",
	"Parse a saved bundle back into its file blocks.",
	[]mcp.ToolOption{
		mcp.WithString("path", mcp.Description("Bundle file, relative to the project root")),
		mcp.WithString("text", mcp.Description("Bundle text, used when path is empty")),
	},
)

var manifestImportToolDef = tool("manifest_import",
	"Import a manifest file into the local cache as a new snapshot.",
	[]mcp.ToolOption{
		mcp.WithString("path", mcp.Description("Manifest file. Default: newest in the manifest directory")),
		mcp.WithNumber("keep", mcp.Description("Snapshots to retain. Default: 10")),
	},
)

var manifestLookupToolDef = tool("manifest_lookup",
	"Read a cached manifest snapshot: one file's entry, or the list of paths.",
	[]mcp.ToolOption{
		mcp.WithString("snapshot_id", mcp.Description("Snapshot ID. Default: latest")),
		mcp.WithString("path", mcp.Description("File to look up. Omit to list paths")),
	},
)
