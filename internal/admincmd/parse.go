// Package admincmd parses and executes the chat-style category
// administration commands shared by the Telegram bot and the CLI.
package admincmd

import (
	"errors"
	"fmt"
	"strings"

	"msgsort/pkg/categorizer"
)

type Kind string

const (
	KindAdd    Kind = "add"
	KindList   Kind = "list"
	KindDelete Kind = "delete"
	KindStats  Kind = "stats"
	KindExport Kind = "export"
	KindHelp   Kind = "help"
)

var aliases = map[string]Kind{
	"add":               KindAdd,
	"add_category":      KindAdd,
	"ac":                KindAdd,
	"list":              KindList,
	"list_categories":   KindList,
	"lc":                KindList,
	"delete":            KindDelete,
	"delete_category":   KindDelete,
	"dc":                KindDelete,
	"stats":             KindStats,
	"s":                 KindStats,
	"export":            KindExport,
	"export_categories": KindExport,
	"help":              KindHelp,
	"start":             KindHelp,
}

var (
	ErrNotCommand     = errors.New("not a command")
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage wraps argument errors; the message carries the usage line.
	ErrUsage = errors.New("invalid command arguments")
)

// Command is a parsed admin command.
type Command struct {
	Kind     Kind
	Name     string
	Keywords []string
}

// IsCommand reports whether text looks like a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Parse reads one command line. The leading '/' is optional and a Telegram
// "@botname" suffix on the verb is ignored. Keywords of an add command are
// separated by commas:
//
//	/add_category trabajo reunión, meeting, oficina
func Parse(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{}, ErrNotCommand
	}
	verb := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(verb, '@'); at >= 0 {
		verb = verb[:at]
	}
	kind, ok := aliases[strings.ToLower(verb)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]

	cmd := Command{Kind: kind}
	switch kind {
	case KindAdd:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: %s", ErrUsage, Usage(KindAdd))
		}
		cmd.Name = strings.ToLower(args[0])
		cmd.Keywords = categorizer.SplitKeywords(strings.Join(args[1:], " "), categorizer.KeywordSeparator)
	case KindDelete:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: %s", ErrUsage, Usage(KindDelete))
		}
		cmd.Name = strings.ToLower(args[0])
	}
	return cmd, nil
}

// Usage returns the one-line usage of a command.
func Usage(k Kind) string {
	switch k {
	case KindAdd:
		return "/add_category <nombre> <palabra1, palabra2, ...>"
	case KindDelete:
		return "/delete_category <nombre>"
	case KindList:
		return "/list_categories"
	case KindStats:
		return "/stats"
	case KindExport:
		return "/export_categories"
	default:
		return "/help"
	}
}
