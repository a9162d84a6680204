package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List the conversations of the local history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := history.NewSQLiteStore(s.Local.DatabasePath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			var edits conversationEdits
			edits.Pin, _ = cmd.Flags().GetString("pin")
			edits.Unpin, _ = cmd.Flags().GetString("unpin")
			edits.Delete, _ = cmd.Flags().GetString("delete")
			edits.Rename, _ = cmd.Flags().GetString("rename")
			if err := applyConversationEdits(cmd.Context(), store, edits); err != nil {
				return err
			}
			return listConversations(cmd.Context(), store, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("pin", "", "Pin a conversation before listing")
	cmd.Flags().String("unpin", "", "Unpin a conversation before listing")
	cmd.Flags().String("delete", "", "Delete a conversation before listing")
	cmd.Flags().String("rename", "", "Rename a conversation before listing (ID=TITLE)")
	return cmd
}

type conversationEdits struct {
	Pin    string
	Unpin  string
	Delete string
	Rename string
}

func applyConversationEdits(ctx context.Context, store *history.SQLiteStore, edits conversationEdits) error {
	if edits.Rename != "" {
		id, title, ok := strings.Cut(edits.Rename, "=")
		if !ok || id == "" {
			return errors.Errorf("rename expects ID=TITLE, got %q", edits.Rename)
		}
		if err := store.SetTitle(ctx, id, title); err != nil {
			return err
		}
	}
	if edits.Pin != "" {
		if err := store.SetPinned(ctx, edits.Pin, true); err != nil {
			return err
		}
	}
	if edits.Unpin != "" {
		if err := store.SetPinned(ctx, edits.Unpin, false); err != nil {
			return err
		}
	}
	if edits.Delete != "" {
		if err := store.DeleteConversation(ctx, edits.Delete); err != nil {
			return err
		}
	}
	return nil
}

func listConversations(ctx context.Context, store *history.SQLiteStore, out io.Writer) error {
	convs, err := store.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		_, _ = fmt.Fprintln(out, "no conversations")
		return nil
	}
	for _, c := range convs {
		pin := " "
		if c.Pinned {
			pin = "*"
		}
		_, _ = fmt.Fprintf(out, "%s %s  %s  %s\n", pin, c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.Title)
	}
	return nil
}
