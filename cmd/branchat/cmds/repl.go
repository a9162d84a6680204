package cmds

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-go-golems/branchat/pkg/chat"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/feedback"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
)

type CommandKind string

const (
	CommandSend     CommandKind = "send"
	CommandEdit     CommandKind = "edit"
	CommandRerun    CommandKind = "rerun"
	CommandVersion  CommandKind = "version"
	CommandLoad     CommandKind = "load"
	CommandNew      CommandKind = "new"
	CommandAttach   CommandKind = "attach"
	CommandFeedback CommandKind = "feedback"
	CommandShow     CommandKind = "show"
	CommandQuit     CommandKind = "quit"
	CommandHelp     CommandKind = "help"
)

// Command is one parsed REPL line.
type Command struct {
	Kind  CommandKind
	Index int
	Delta int
	Text  string
}

const replHelp = `Plain lines are sent as messages. Commands:
  /edit N TEXT        edit user message N and resubmit
  /rerun N            regenerate assistant message N
  /version N +1|-1    show the next or previous version of message N
  /load ID            load a saved conversation
  /new                start a new conversation
  /attach PATH        upload a document, referenced by the next message
  /feedback N up|down rate assistant message N
  /show               print the conversation
  /quit               exit
`

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandSend, Text: line}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "edit":
		idx, text, _ := strings.Cut(rest, " ")
		i, err := parseIndex(idx)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandEdit, Index: i, Text: strings.TrimSpace(text)}, nil

	case "rerun":
		i, err := parseIndex(rest)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandRerun, Index: i}, nil

	case "version":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, errors.New("usage: /version N +1|-1")
		}
		i, err := parseIndex(fields[0])
		if err != nil {
			return Command{}, err
		}
		delta, err := strconv.Atoi(fields[1])
		if err != nil {
			return Command{}, errors.Wrapf(err, "invalid delta %q", fields[1])
		}
		return Command{Kind: CommandVersion, Index: i, Delta: delta}, nil

	case "load":
		if rest == "" {
			return Command{}, errors.New("usage: /load ID")
		}
		return Command{Kind: CommandLoad, Text: rest}, nil

	case "new":
		return Command{Kind: CommandNew}, nil

	case "attach":
		if rest == "" {
			return Command{}, errors.New("usage: /attach PATH")
		}
		return Command{Kind: CommandAttach, Text: rest}, nil

	case "feedback":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, errors.New("usage: /feedback N up|down")
		}
		i, err := parseIndex(fields[0])
		if err != nil {
			return Command{}, err
		}
		if _, err := feedback.ParseType(fields[1]); err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandFeedback, Index: i, Text: fields[1]}, nil

	case "show":
		return Command{Kind: CommandShow}, nil
	case "quit", "exit":
		return Command{Kind: CommandQuit}, nil
	case "help":
		return Command{Kind: CommandHelp}, nil
	}

	return Command{}, errors.Wrapf(ErrUnknownCommand, "/%s", name)
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Errorf("invalid message index %q", s)
	}
	return i, nil
}

// REPL executes parsed commands against a session.
type REPL struct {
	Session *chat.Session
	Chat    *settings.ChatSettings
	Out     io.Writer
}

// Execute runs cmd. It returns true when the REPL should stop. Errors are
// meant to be shown to the user, they never end the REPL.
func (r *REPL) Execute(ctx context.Context, cmd Command) (bool, error) {
	switch cmd.Kind {
	case CommandSend:
		outcome, err := r.Session.SendMessage(ctx, r.Chat, cmd.Text)
		r.printAnswer(outcome)
		return false, err

	case CommandEdit:
		outcome, err := r.Session.EditMessage(ctx, r.Chat, cmd.Index, cmd.Text)
		r.printAnswer(outcome)
		return false, err

	case CommandRerun:
		outcome, err := r.Session.RerunMessage(ctx, r.Chat, cmd.Index)
		r.printAnswer(outcome)
		return false, err

	case CommandVersion:
		tl, err := r.Session.SetVersion(cmd.Index, cmd.Delta)
		if err != nil {
			return false, err
		}
		n, _ := tl.At(cmd.Index)
		printNode(r.Out, cmd.Index, n)
		return false, nil

	case CommandLoad:
		tl, err := r.Session.LoadSession(ctx, cmd.Text)
		if err != nil {
			return false, err
		}
		PrintTimeline(r.Out, tl)
		return false, nil

	case CommandNew:
		_, err := r.Session.LoadSession(ctx, "")
		if err == nil {
			_, _ = fmt.Fprintln(r.Out, "started a new conversation")
		}
		return false, err

	case CommandAttach:
		res, err := r.Session.AttachFile(ctx, cmd.Text)
		if err != nil {
			return false, errors.Wrap(err, "could not upload file")
		}
		_, _ = fmt.Fprintf(r.Out, "attached %s (%d chunks)\n", res.Filename, res.Chunks)
		return false, nil

	case CommandFeedback:
		return false, r.Session.Feedback(ctx, cmd.Index, feedback.Type(cmd.Text))

	case CommandShow:
		PrintTimeline(r.Out, r.Session.Timeline())
		return false, nil

	case CommandHelp:
		_, _ = fmt.Fprint(r.Out, replHelp)
		return false, nil

	case CommandQuit:
		return true, nil
	}
	return false, errors.Errorf("unhandled command %s", cmd.Kind)
}

func (r *REPL) printAnswer(outcome chat.Outcome) {
	if outcome.NodeIndex < 0 {
		return
	}
	n, err := r.Session.Timeline().At(outcome.NodeIndex)
	if err != nil {
		return
	}
	printNode(r.Out, outcome.NodeIndex, n)
}

func PrintTimeline(w io.Writer, tl conversation.Timeline) {
	if tl.IsEmpty() {
		_, _ = fmt.Fprintln(w, "(empty conversation)")
		return
	}
	for i, n := range tl.Nodes() {
		printNode(w, i, n)
	}
}

func printNode(w io.Writer, i int, n conversation.Node) {
	header := fmt.Sprintf("[%d] %s", i, n.Role)
	if n.VersionCount() > 1 {
		header += fmt.Sprintf(" (%d/%d)", n.CurrentOrdinal(), n.VersionCount())
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", header, n.DisplayContent())
	for _, src := range n.Sources() {
		_, _ = fmt.Fprintf(w, "    source: %s %s\n", src.Title, src.URL)
	}
}
