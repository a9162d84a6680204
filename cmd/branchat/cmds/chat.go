package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func loadSettings() (*settings.Settings, error) {
	return settings.NewSettingsFromViper(viper.GetViper())
}

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively, with edits, reruns and version navigation",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			sessionID, _ := cmd.Flags().GetString("session")
			verbose := viper.GetBool("verbose")
			return runChat(cmd.Context(), s, sessionID, verbose, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().String("session", "", "Conversation to continue")
	return cmd
}

func runChat(ctx context.Context, s *settings.Settings, sessionID string, verbose bool, in io.Reader, out io.Writer, errOut io.Writer) error {
	backend, err := NewBackend(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close backend")
		}
	}()

	router, err := events.NewEventRouter(events.WithVerbose(verbose))
	if err != nil {
		return err
	}
	router.AddEventHandler("print-session-events", events.SessionTopic, func(ctx context.Context, ev events.Event) error {
		printEvent(errOut, ev)
		return nil
	})

	session := backend.NewSession(s, router.Sink(events.SessionTopic))
	repl := &REPL{Session: session, Chat: s.Chat, Out: out}
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		defer func() {
			_ = router.Close()
		}()
		<-router.Running()

		if sessionID != "" {
			if _, err := repl.Execute(ctx, Command{Kind: CommandLoad, Text: sessionID}); err != nil {
				return err
			}
		}
		if interactive {
			_, _ = fmt.Fprint(out, replHelp)
		}
		return readLoop(ctx, repl, in, out, errOut, interactive)
	})

	return eg.Wait()
}

func readLoop(ctx context.Context, repl *REPL, in io.Reader, out io.Writer, errOut io.Writer, interactive bool) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("could not read input")
		}
	}()

	for {
		if interactive {
			_, _ = fmt.Fprint(out, "> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
				continue
			}
			quit, err := repl.Execute(ctx, cmd)
			if err != nil {
				_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func printEvent(w io.Writer, ev events.Event) {
	switch ev.Type {
	case events.EventTypeAttemptFailed:
		_, _ = fmt.Fprintf(w, "attempt %d failed: %s\n", ev.Attempt, ev.Error)
	case events.EventTypeRequestDiscarded:
		_, _ = fmt.Fprintln(w, "dropped an answer for the previous conversation")
	case events.EventTypeSessionLoadFailed:
		_, _ = fmt.Fprintf(w, "could not load conversation %s: %s\n", ev.SessionID, ev.Error)
	case events.EventTypeFeedbackFailed:
		_, _ = fmt.Fprintf(w, "feedback was not delivered: %s\n", ev.Error)
	case events.EventTypeFeedbackSent:
		_, _ = fmt.Fprintln(w, "thanks for the feedback")
	default:
		log.Debug().Object("event", ev).Msg("session event")
	}
}
