package review

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/hpungsan/ctxpack/internal/docs"
	"github.com/hpungsan/ctxpack/internal/logging"
	"github.com/hpungsan/ctxpack/internal/manifest"
)

// maxSuggestions caps "did you mean" output.
const maxSuggestions = 3

// Console drives interactive prompts over a reader and writer.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewConsole returns a Console reading from in and writing prompts to out.
func NewConsole(in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{in: bufio.NewReader(in), out: out, logger: logging.OrNop(logger)}
}

// readLine returns the next line without its terminator. ok is false at
// end of input with nothing read.
func (c *Console) readLine() (string, bool) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Review shows suggested files with their manifest token total and applies
// commands until the user confirms or quits. It returns the final list and
// true on confirm, or nil and false on quit or end of input. Budget is not
// enforced here; maxTokens is only displayed.
func (c *Console) Review(suggested []string, m *manifest.Manifest, maxTokens int) ([]string, bool) {
	list := make([]string, 0, len(suggested))
	for _, s := range suggested {
		if p := NormalizePath(s); p != "" {
			list, _ = Apply(list, Command{Op: OpAdd, Path: p})
		}
	}

	c.logger.Info("selector suggested files", "count", len(list))
	fmt.Fprintf(c.out, "Suggested files (%d):\n", len(list))
	c.printList(list, m, maxTokens)

	for {
		fmt.Fprint(c.out, "Command (a <path> add, r <path> remove, y confirm, q quit): ")
		line, ok := c.readLine()
		if !ok {
			c.logger.Info("selection review ended without confirmation")
			return nil, false
		}

		cmd := ParseCommand(line)
		switch cmd.Op {
		case OpQuit:
			c.logger.Info("selection cancelled by user")
			return nil, false
		case OpConfirm:
			c.logger.Info("selection confirmed", "count", len(list))
			fmt.Fprintf(c.out, "Using %d selected files.\n", len(list))
			return list, true
		case OpInvalid:
			fmt.Fprintf(c.out, "Unrecognized command: %q\n", line)
			continue
		}

		var ev Event
		list, ev = Apply(list, cmd)
		switch ev {
		case EventAdded:
			c.logger.Info("file added to selection", "path", cmd.Path)
			fmt.Fprintf(c.out, "Added %s\n", cmd.Path)
			if _, known := m.Get(cmd.Path); m != nil && !known {
				c.suggest(cmd.Path, m)
			}
		case EventRemoved:
			c.logger.Info("file removed from selection", "path", cmd.Path)
			fmt.Fprintf(c.out, "Removed %s\n", cmd.Path)
		case EventAlreadyPresent:
			fmt.Fprintf(c.out, "%s is already selected\n", cmd.Path)
		case EventNotPresent:
			fmt.Fprintf(c.out, "%s is not selected\n", cmd.Path)
		}
		c.printList(list, m, maxTokens)
	}
}

func (c *Console) printList(list []string, m *manifest.Manifest, maxTokens int) {
	total := 0
	for i, p := range list {
		n, ok := m.TokenCount(p)
		if ok {
			total += n
			fmt.Fprintf(c.out, "    [%d] %s (%d tokens)\n", i+1, p, n)
		} else {
			fmt.Fprintf(c.out, "    [%d] %s\n", i+1, p)
		}
	}
	fmt.Fprintf(c.out, "Estimated tokens: %d / %d\n", total, maxTokens)
}

func (c *Console) suggest(p string, m *manifest.Manifest) {
	matches := fuzzy.Find(p, m.Paths())
	if len(matches) == 0 {
		fmt.Fprintf(c.out, "  (%s is not in the manifest)\n", p)
		return
	}
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	names := make([]string, len(matches))
	for i, mt := range matches {
		names[i] = mt.Str
	}
	fmt.Fprintf(c.out, "  (%s is not in the manifest; did you mean: %s?)\n", p, strings.Join(names, ", "))
}

// MissingEssential asks whether to continue without rel. The default is
// to abort. It satisfies pack.MissingFilePolicy.
func (c *Console) MissingEssential(rel string) bool {
	fmt.Fprintf(c.out, "Essential file missing: %s\n(C)ontinue / (A)bort [A]: ", rel)
	line, ok := c.readLine()
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "continue":
		return true
	default:
		return false
	}
}

// ConfirmDefaultContext asks whether to fall back to the default context
// when the selection is empty. The default is no.
func (c *Console) ConfirmDefaultContext() bool {
	fmt.Fprint(c.out, "No files selected. Load the default context instead? (y/N): ")
	line, ok := c.readLine()
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ChooseDoc lists ds and asks for one by number. It returns the chosen path,
// or false on quit, end of input or an empty list. Invalid answers re-prompt.
func (c *Console) ChooseDoc(ds []docs.Doc) (string, bool) {
	if len(ds) == 0 {
		fmt.Fprintln(c.out, "No documentation files found.")
		return "", false
	}
	fmt.Fprintln(c.out, "Documentation files:")
	for i, d := range ds {
		if d.Title != "" {
			fmt.Fprintf(c.out, "    [%d] %s (%s)\n", i+1, d.Path, d.Title)
		} else {
			fmt.Fprintf(c.out, "    [%d] %s\n", i+1, d.Path)
		}
	}
	for {
		fmt.Fprintf(c.out, "Choose a file (1-%d, q to quit): ", len(ds))
		line, ok := c.readLine()
		if !ok {
			return "", false
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "q" || line == "quit" {
			return "", false
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(ds) {
			fmt.Fprintln(c.out, "Invalid choice.")
			continue
		}
		c.logger.Info("document chosen", "path", ds[n-1].Path)
		return ds[n-1].Path, true
	}
}
