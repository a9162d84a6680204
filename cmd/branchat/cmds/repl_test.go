package cmds

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/branchat/pkg/chat"
	"github.com/go-go-golems/branchat/pkg/completion"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Kind: CommandSend, Text: "hello there"}},
		{"/edit 2 new text here", Command{Kind: CommandEdit, Index: 2, Text: "new text here"}},
		{"/rerun 3", Command{Kind: CommandRerun, Index: 3}},
		{"/version 1 -1", Command{Kind: CommandVersion, Index: 1, Delta: -1}},
		{"/version 1 +1", Command{Kind: CommandVersion, Index: 1, Delta: 1}},
		{"/load abc-123", Command{Kind: CommandLoad, Text: "abc-123"}},
		{"/new", Command{Kind: CommandNew}},
		{"/attach ./docs/report.pdf", Command{Kind: CommandAttach, Text: "./docs/report.pdf"}},
		{"/feedback 1 down", Command{Kind: CommandFeedback, Index: 1, Text: "down"}},
		{"/show", Command{Kind: CommandShow}},
		{"  /quit  ", Command{Kind: CommandQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"/edit x text",
		"/rerun",
		"/version 1",
		"/version 1 up",
		"/load",
		"/attach",
		"/feedback 1 sideways",
	} {
		_, err := ParseCommand(line)
		assert.Error(t, err, line)
	}

	_, err := ParseCommand("/frobnicate")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestREPLExecutesBranchingCommands(t *testing.T) {
	mock := completion.NewMockClient(
		completion.Succeed("four"),
		completion.Succeed("still four"),
		completion.Succeed("five"),
	)
	var out bytes.Buffer
	repl := &REPL{Session: chat.NewSession(mock), Chat: settings.NewChatSettings(), Out: &out}
	ctx := context.Background()

	run := func(line string) {
		t.Helper()
		cmd, err := ParseCommand(line)
		require.NoError(t, err)
		quit, err := repl.Execute(ctx, cmd)
		require.NoError(t, err)
		assert.False(t, quit)
	}

	run("2+2?")
	assert.Contains(t, out.String(), "[1] assistant: four")

	run("/rerun 1")
	assert.Contains(t, out.String(), "[1] assistant (2/2): still four")

	run("/version 1 -1")
	assert.Contains(t, out.String(), "[1] assistant (1/2): four")

	run("/edit 0 2+3?")
	assert.Contains(t, out.String(), "[1] assistant: five")

	out.Reset()
	run("/show")
	assert.Equal(t, "[0] user (2/2): 2+3?\n[1] assistant: five\n", out.String())

	quit, err := repl.Execute(ctx, Command{Kind: CommandQuit})
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestREPLReportsValidationErrors(t *testing.T) {
	repl := &REPL{Session: chat.NewSession(completion.NewMockClient()), Out: &bytes.Buffer{}}
	_, err := repl.Execute(context.Background(), Command{Kind: CommandRerun, Index: 0})
	require.ErrorIs(t, err, chat.ErrInvalidIndex)

	_, err = repl.Execute(context.Background(), Command{Kind: CommandSend, Text: " "})
	require.ErrorIs(t, err, chat.ErrEmptyMessage)
}

func TestRunChatWithEchoBackend(t *testing.T) {
	s := settings.NewSettings()
	s.Backend = settings.BackendEcho
	s.Chat.Model = "m"

	in := strings.NewReader("hello\n/rerun 1\n/bogus\n/show\n/quit\nnever sent\n")
	var out, errOut bytes.Buffer
	err := runChat(context.Background(), s, "", false, in, &out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[1] assistant: [m] hello")
	assert.Contains(t, out.String(), "[1] assistant (2/2): [m] hello")
	assert.NotContains(t, out.String(), "never sent")
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestPrintHistoryFromLocalStore(t *testing.T) {
	ctx := context.Background()
	s := settings.NewSettings()
	s.Backend = settings.BackendLocal
	s.Local.DatabasePath = filepath.Join(t.TempDir(), "history.db")

	store, err := history.NewSQLiteStore(s.Local.DatabasePath)
	require.NoError(t, err)
	id, err := store.CreateConversation(ctx, history.ConversationTitle("what is go"))
	require.NoError(t, err)
	require.NoError(t, store.RecordInteraction(ctx, history.Interaction{
		ConversationID: id,
		UserPrompt:     "what is go",
		Response:       "a language",
		Sources:        []conversation.Source{{Title: "Document Context", URL: "#"}},
	}))

	var out bytes.Buffer
	require.NoError(t, listConversations(ctx, store, &out))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "what is go...")
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, printHistory(ctx, s, id, &out))
	assert.Contains(t, out.String(), "[0] user: what is go")
	assert.Contains(t, out.String(), "[1] assistant: a language")
	assert.Contains(t, out.String(), "source: Document Context #")

	err = printHistory(ctx, s, "missing", &out)
	require.Error(t, err)
}

func TestConversationEditsRenameAndPin(t *testing.T) {
	ctx := context.Background()
	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	id, err := store.CreateConversation(ctx, "what is go...")
	require.NoError(t, err)
	require.NoError(t, applyConversationEdits(ctx, store, conversationEdits{Rename: id + "=Go basics", Pin: id}))

	var out bytes.Buffer
	require.NoError(t, listConversations(ctx, store, &out))
	assert.Contains(t, out.String(), "* "+id)
	assert.Contains(t, out.String(), "Go basics")

	require.Error(t, applyConversationEdits(ctx, store, conversationEdits{Rename: "no-separator"}))
	require.ErrorIs(t, applyConversationEdits(ctx, store, conversationEdits{Rename: "missing=x"}), history.ErrConversationNotFound)
}

func TestConfigFileCheckAndPrint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "backend: echo\nclient:\n  token: secret\n  timeout: 7\nretry:\n  max_retries: 1\n  delay_ms: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := checkConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, settings.BackendEcho, s.Backend)
	assert.Equal(t, 7*time.Second, *s.Client.Timeout)
	assert.Equal(t, 20*time.Millisecond, s.Retry.Delay)

	var out bytes.Buffer
	require.NoError(t, printSettings(s, &out))
	assert.Contains(t, out.String(), "timeout: 7\n")
	assert.Contains(t, out.String(), "delay_ms: 20\n")
	assert.NotContains(t, out.String(), "secret")
	assert.Equal(t, "secret", s.Client.Token)

	require.NoError(t, os.WriteFile(path, []byte("backend: pigeon\n"), 0o600))
	_, err = checkConfigFile(path)
	require.Error(t, err)
}
