// Package review lets a user adjust a suggested file selection before it is
// assembled.
package review

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Op is a reviewer command type.
type Op int

const (
	OpInvalid Op = iota
	OpAdd
	OpRemove
	OpConfirm
	OpQuit
)

// Command is one parsed input line.
type Command struct {
	Op   Op
	Path string
}

// Event describes what Apply did.
type Event int

const (
	EventNone Event = iota
	EventAdded
	EventRemoved
	EventAlreadyPresent
	EventNotPresent
)

// ParseCommand parses "a <path>", "r <path>", "y", or an empty/"q" line.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Op: OpQuit}
	}
	verb := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch verb {
	case "y", "yes":
		if arg == "" {
			return Command{Op: OpConfirm}
		}
	case "q", "quit", "exit":
		if arg == "" {
			return Command{Op: OpQuit}
		}
	case "a", "add":
		if p := NormalizePath(arg); p != "" {
			return Command{Op: OpAdd, Path: p}
		}
	case "r", "rm", "remove":
		if p := NormalizePath(arg); p != "" {
			return Command{Op: OpRemove, Path: p}
		}
	}
	return Command{Op: OpInvalid}
}

// NormalizePath canonicalizes a user-typed path: NFC, forward slashes, no
// leading "./".
func NormalizePath(p string) string {
	p = norm.NFC.String(strings.TrimSpace(p))
	p = strings.Trim(p, `"'`)
	if p == "" {
		return ""
	}
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "./")
}

// Apply returns the selection after cmd. The input slice is not modified.
// Only add and remove change the list.
func Apply(list []string, cmd Command) ([]string, Event) {
	out := append([]string(nil), list...)
	switch cmd.Op {
	case OpAdd:
		for _, p := range out {
			if p == cmd.Path {
				return out, EventAlreadyPresent
			}
		}
		return append(out, cmd.Path), EventAdded
	case OpRemove:
		for i, p := range out {
			if p == cmd.Path {
				return append(out[:i], out[i+1:]...), EventRemoved
			}
		}
		return out, EventNotPresent
	default:
		return out, EventNone
	}
}
