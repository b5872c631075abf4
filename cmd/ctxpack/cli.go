package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/ops"
	"github.com/hpungsan/ctxpack/internal/pack"
	"github.com/hpungsan/ctxpack/internal/review"
)

// maxStdinBytes caps piped input (bundles, selector replies, text to estimate).
const maxStdinBytes = 10 << 20

// onMissingAsk prompts on the terminal for each missing essential file.
const onMissingAsk = "ask"

// stdinIsTerminal reports whether prompts can be shown. Tests replace it.
var stdinIsTerminal = isTerminal

// newCLIApp creates the CLI application with all commands.
func newCLIApp(p *ops.Project) *cli.App {
	app := &cli.App{
		Name:    "ctxpack",
		Usage:   "Token-budgeted context bundles for LLM tasks",
		Version: Version,
		Commands: []*cli.Command{
			assembleCmd(p),
			essentialsCmd(p),
			packCmd(p),
			selectorPayloadCmd(p),
			reviewCmd(p),
			estimateCmd(p),
			manifestCmd(p),
			docsCmd(p),
			copyTempCmd(p),
			inspectCmd(p),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// Shared flags

func taskFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "task", Aliases: []string{"t"}, Required: required, Usage: "Task name (e.g. commit-message, resolve-ac)"},
		&cli.StringFlag{Name: "issue", Aliases: []string{"i"}, Usage: "Issue number for {issue} templates"},
		&cli.StringFlag{Name: "ac", Usage: "Acceptance criterion number for {ac} templates"},
		&cli.StringFlag{Name: "doc", Usage: "Target document for update-doc"},
		&cli.StringFlag{Name: "run", Usage: "Run directory name (default: newest)"},
	}
}

func manifestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Manifest file (default: newest in the manifest directory)"},
		&cli.BoolFlag{Name: "cached-manifest", Usage: "Use the latest imported manifest snapshot"},
	}
}

func onMissingFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "on-missing",
		Usage: "Missing essential file handling: ask|abort|continue (default: ask on a terminal, else abort)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Flag readers

func taskInput(c *cli.Context) ops.TaskInput {
	return ops.TaskInput{
		Task:    c.String("task"),
		Issue:   c.String("issue"),
		AC:      c.String("ac"),
		DocFile: c.String("doc"),
		Run:     c.String("run"),
	}
}

func manifestSource(c *cli.Context) ops.ManifestSource {
	return ops.ManifestSource{Path: c.String("manifest"), Cached: c.Bool("cached-manifest")}
}

// missingPolicy maps --on-missing to an op mode, or to an interactive
// policy backed by console when the mode is ask.
func missingPolicy(c *cli.Context, console *review.Console) (string, pack.MissingFilePolicy, error) {
	mode := strings.ToLower(strings.TrimSpace(c.String("on-missing")))
	if mode == "" {
		mode = ops.OnMissingAbort
		if stdinIsTerminal() {
			mode = onMissingAsk
		}
	}
	switch mode {
	case onMissingAsk:
		return "", console.MissingEssential, nil
	case ops.OnMissingAbort, ops.OnMissingContinue:
		return mode, nil, nil
	default:
		return "", nil, errors.NewInvalidRequest("--on-missing must be one of: ask, abort, continue")
	}
}

func newConsole(c *cli.Context, p *ops.Project) *review.Console {
	return review.NewConsole(c.App.Reader, c.App.ErrWriter, p.Logger)
}

// chooseDoc fills in --doc for update-doc by asking on the terminal.
func chooseDoc(p *ops.Project, console *review.Console, in *ops.TaskInput) error {
	if in.Task != "update-doc" || in.DocFile != "" || !stdinIsTerminal() {
		return nil
	}
	found, err := ops.FindDocs(p)
	if err != nil {
		return err
	}
	doc, ok := console.ChooseDoc(found.Docs)
	if !ok {
		return errors.NewCancelled("document selection")
	}
	in.DocFile = doc
	return nil
}

// selection reads --select-from (a selector model reply) and --include.
// ok is false when neither flag was given.
func selection(c *cli.Context, p *ops.Project) ([]string, bool, error) {
	var files []string
	given := false
	if path := c.String("select-from"); path != "" {
		given = true
		reply, err := readReply(c, path)
		if err != nil {
			return nil, true, err
		}
		files, err = ops.ParseSelection(p, reply)
		if err != nil {
			return nil, true, err
		}
	}
	if inc := c.StringSlice("include"); len(inc) > 0 {
		given = true
		files = append(files, inc...)
	}
	return files, given, nil
}

// readReply reads a selector reply from a file, or stdin for "-".
func readReply(c *cli.Context, path string) (string, error) {
	if path == "-" {
		return readStdin(c.App.Reader, maxStdinBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// Commands

// assembleCmd creates the assemble command.
func assembleCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "assemble",
		Usage: "Build a context bundle: essential files, then selected or scanned files fit to the budget",
		Flags: flags(taskFlags(false), manifestFlags(), []cli.Flag{
			&cli.StringSliceFlag{Name: "include", Usage: "File to include instead of scanning (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"exclude-context"}, Usage: "Path, glob or directory to leave out (repeatable)"},
			&cli.StringFlag{Name: "select-from", Usage: "Selector model reply with relevant_files (- for stdin)"},
			&cli.BoolFlag{Name: "review", Usage: "Review the selection interactively before assembling"},
			&cli.IntFlag{Name: "max-tokens", Usage: "Token budget (default: max_input_tokens)"},
			onMissingFlag(),
			&cli.BoolFlag{Name: "save", Usage: "Write the bundle to the output directory"},
			&cli.BoolFlag{Name: "copy-temp", Usage: "Copy the loaded files, flattened, into the temp directory"},
			jsonFlag(),
		}),
		Action: func(c *cli.Context) error {
			console := newConsole(c, p)
			mode, policy, err := missingPolicy(c, console)
			if err != nil {
				return outputError(err)
			}
			in := taskInput(c)
			if err := chooseDoc(p, console, &in); err != nil {
				return outputError(err)
			}

			include, given, err := selection(c, p)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("review") {
				m, _, err := p.LoadManifest(manifestSource(c))
				if err != nil {
					return outputError(err)
				}
				limit := c.Int("max-tokens")
				if limit <= 0 {
					limit = p.Config.MaxInputTokens
				}
				list, ok := console.Review(include, m, limit)
				switch {
				case !ok:
					p.Logger.Warn("selection review ended without confirmation, loading the default context")
					include, given = nil, false
				case len(list) == 0 && console.ConfirmDefaultContext():
					include, given = nil, false
				default:
					include, given = list, true
				}
			} else if given && len(include) == 0 {
				p.Logger.Warn("selection is empty, loading the default context")
				given = false
			}
			if !given {
				include = nil
			} else if include == nil {
				include = []string{}
			}

			out, err := ops.Assemble(c.Context, p, ops.AssembleInput{
				TaskInput: in,
				Include:   include,
				Exclude:   c.StringSlice("exclude"),
				MaxTokens: c.Int("max-tokens"),
				OnMissing: mode,
				Policy:    policy,
				Manifest:  manifestSource(c),
				Save:      c.Bool("save"),
			})
			if err != nil {
				return outputError(err)
			}

			var copied *ops.CopyToTempOutput
			if c.Bool("copy-temp") {
				copied, err = ops.CopyToTemp(c.Context, p, ops.CopyToTempInput{Files: out.Loaded})
				if err != nil {
					return outputError(err)
				}
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, struct {
					*ops.AssembleOutput
					Temp *ops.CopyToTempOutput `json:"temp,omitempty"`
				}{out, copied})
			}
			fmt.Fprintln(c.App.Writer, out.Text)
			fmt.Fprintf(c.App.ErrWriter, "Estimated tokens: %d / %d (%d files)\n", out.TokensUsed, out.MaxTokens, len(out.Loaded))
			if out.Bundle != nil {
				fmt.Fprintf(c.App.ErrWriter, "Saved: %s\n", out.Bundle.Path)
			}
			if copied != nil {
				fmt.Fprintf(c.App.ErrWriter, "Copied %d files to %s\n", len(copied.Copied), copied.Dir)
			}
			return nil
		},
	}
}

// essentialsCmd creates the essentials command.
func essentialsCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "essentials",
		Usage: "List a task's essential files",
		Flags: taskFlags(true),
		Action: func(c *cli.Context) error {
			out, err := ops.ResolveEssentials(p, taskInput(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// packCmd creates the pack command.
func packCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "Load only a task's essential files into the budget",
		Flags: flags(taskFlags(true), []cli.Flag{
			&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Manifest supplying summary headers"},
			&cli.IntFlag{Name: "max-tokens", Usage: "Token budget (default: max_input_tokens)"},
			onMissingFlag(),
			jsonFlag(),
		}),
		Action: func(c *cli.Context) error {
			mode, policy, err := missingPolicy(c, newConsole(c, p))
			if err != nil {
				return outputError(err)
			}
			out, err := ops.PackEssentials(p, ops.PackEssentialsInput{
				TaskInput: taskInput(c),
				MaxTokens: c.Int("max-tokens"),
				OnMissing: mode,
				Policy:    policy,
				Manifest:  ops.ManifestSource{Path: c.String("manifest")},
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, out)
			}
			fmt.Fprintln(c.App.Writer, out.Text)
			return nil
		},
	}
}

// selectorPayloadCmd creates the selector-payload command.
func selectorPayloadCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "selector-payload",
		Usage: "Build the prompt asking a model to pick relevant files",
		Flags: flags(taskFlags(true), manifestFlags(), []cli.Flag{
			&cli.StringFlag{Name: "template", Usage: "Prompt template file (default: built-in)"},
			&cli.IntFlag{Name: "max-essential-tokens", Usage: "Budget for embedded essentials (default: selector_essential_tokens)"},
			onMissingFlag(),
			jsonFlag(),
		}),
		Action: func(c *cli.Context) error {
			mode, policy, err := missingPolicy(c, newConsole(c, p))
			if err != nil {
				return outputError(err)
			}
			out, err := ops.SelectorPayload(p, ops.SelectorPayloadInput{
				TaskInput:          taskInput(c),
				TemplatePath:       c.String("template"),
				MaxEssentialTokens: c.Int("max-essential-tokens"),
				OnMissing:          mode,
				Policy:             policy,
				Manifest:           manifestSource(c),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, out)
			}
			fmt.Fprintln(c.App.Writer, out.Text)
			fmt.Fprintf(c.App.ErrWriter, "Estimated tokens: %d\n", out.EstimatedTokens)
			return nil
		},
	}
}

// reviewCmd creates the review command.
func reviewCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review a file selection interactively and print the confirmed list",
		Flags: flags(manifestFlags(), []cli.Flag{
			&cli.StringSliceFlag{Name: "include", Usage: "Suggested file (repeatable)"},
			&cli.StringFlag{Name: "select-from", Usage: "Selector model reply with relevant_files"},
			&cli.IntFlag{Name: "max-tokens", Usage: "Budget shown next to the running total"},
		}),
		Action: func(c *cli.Context) error {
			suggested, _, err := selection(c, p)
			if err != nil {
				return outputError(err)
			}
			m, _, err := p.LoadManifest(manifestSource(c))
			if err != nil {
				return outputError(err)
			}
			limit := c.Int("max-tokens")
			if limit <= 0 {
				limit = p.Config.MaxInputTokens
			}

			list, ok := newConsole(c, p).Review(suggested, m, limit)
			if !ok {
				return outputError(errors.NewCancelled("review"))
			}
			return outputJSON(c.App.Writer, map[string]any{"files": list})
		},
	}
}

// estimateCmd creates the estimate command.
func estimateCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:      "estimate",
		Usage:     "Estimate tokens for files, or for text piped via stdin",
		ArgsUsage: "[file...]",
		Action: func(c *cli.Context) error {
			input := ops.EstimateInput{Paths: c.Args().Slice()}
			if len(input.Paths) == 0 {
				text, err := readStdin(c.App.Reader, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input.Text = text
			}
			out, err := ops.Estimate(p, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// manifestCmd creates the manifest command group.
func manifestCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Manage the local manifest cache",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import a manifest file as a new snapshot",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "keep", Value: ops.DefaultKeepSnapshots, Usage: "Snapshots to retain"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.ImportManifest(c.Context, p, ops.ImportManifestInput{
						Path: c.Args().First(),
						Keep: c.Int("keep"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				},
			},
			{
				Name:      "show",
				Usage:     "Show a cached entry, or list a snapshot's paths",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "snapshot", Usage: "Snapshot ID (default: latest)"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.LookupManifest(p, ops.LookupManifestInput{
						SnapshotID: c.String("snapshot"),
						Path:       c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				},
			},
			{
				Name:  "list",
				Usage: "List cached snapshots, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Max snapshots to list"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.ListSnapshots(p, c.Int("limit"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"snapshots": out})
				},
			},
		},
	}
}

// docsCmd creates the docs command.
func docsCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:  "docs",
		Usage: "List documentation files (README, CHANGELOG, docs/**/*.md)",
		Action: func(c *cli.Context) error {
			out, err := ops.FindDocs(p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// copyTempCmd creates the copy-temp command.
func copyTempCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:      "copy-temp",
		Usage:     "Copy files, flattened to .txt, into a freshly cleaned temp directory",
		ArgsUsage: "[file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "select-from", Usage: "Selector model reply with relevant_files (- for stdin)"},
		},
		Action: func(c *cli.Context) error {
			files, _, err := selection(c, p)
			if err != nil {
				return outputError(err)
			}
			files = append(files, c.Args().Slice()...)
			if len(files) == 0 {
				return outputError(errors.NewInvalidRequest("no files to copy"))
			}
			out, err := ops.CopyToTemp(c.Context, p, ops.CopyToTempInput{Files: files})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(p *ops.Project) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Parse a saved bundle (file or stdin) into its file blocks",
		ArgsUsage: "[path]",
		Action: func(c *cli.Context) error {
			input := ops.InspectInput{Path: c.Args().First()}
			if input.Path == "" {
				text, err := readStdin(c.App.Reader, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input.Text = text
			}
			out, err := ops.Inspect(p, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if ce, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ce.Code, ce.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readStdin reads up to limit bytes from r.
func readStdin(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return string(data), nil
}
