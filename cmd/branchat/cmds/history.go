package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return printHistory(cmd.Context(), s, args[0], cmd.OutOrStdout())
		},
	}
}

func printHistory(ctx context.Context, s *settings.Settings, id string, out io.Writer) error {
	backend, err := NewBackend(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close backend")
		}
	}()

	sink := &events.RecordingSink{}
	session := backend.NewSession(s, sink)
	tl, err := session.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	if failed := sink.OfType(events.EventTypeSessionLoadFailed); len(failed) > 0 {
		return errors.Errorf("could not load conversation %s: %s", id, failed[0].Error)
	}
	_, _ = fmt.Fprintf(out, "conversation %s\n", id)
	PrintTimeline(out, tl)
	return nil
}
