package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestSQLiteStoreRoundTripsInteractions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateConversation(ctx, ConversationTitle("what is a monad?"))
	require.NoError(t, err)

	require.NoError(t, s.RecordInteraction(ctx, Interaction{
		ConversationID: id, UserPrompt: "what is a monad?", Response: "a burrito", Strategy: "direct",
	}))
	require.NoError(t, s.RecordInteraction(ctx, Interaction{
		ConversationID: id, UserPrompt: "really?", Response: "no",
		Strategy: "vector", Sources: []conversation.Source{{Title: "Document Context", URL: "#"}},
	}))

	msgs, err := s.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: conversation.RoleUser, Content: "what is a monad?"}, msgs[0])
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "a burrito", msgs[1].Content)
	assert.Empty(t, msgs[1].Sources)
	assert.Equal(t, []conversation.Source{{Title: "Document Context", URL: "#"}}, msgs[3].Sources)
}

func TestSQLiteStoreMessagesUnknownConversation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Messages(context.Background(), "nope")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSQLiteStoreEmptyConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, err := s.CreateConversation(ctx, "empty")
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLiteStoreRecentTurns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, err := s.CreateConversation(ctx, "t")
	require.NoError(t, err)

	for _, p := range []string{"1", "2", "3"} {
		require.NoError(t, s.RecordInteraction(ctx, Interaction{ConversationID: id, UserPrompt: "q" + p, Response: "a" + p}))
	}

	turns, err := s.RecentTurns(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, []conversation.HistoryEntry{
		{Role: conversation.RoleUser, Content: "q2"},
		{Role: conversation.RoleAssistant, Content: "a2"},
		{Role: conversation.RoleUser, Content: "q3"},
		{Role: conversation.RoleAssistant, Content: "a3"},
	}, turns)
}

func TestSQLiteStoreListPinAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateConversation(ctx, "first")
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "second")
	require.NoError(t, err)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)

	require.NoError(t, s.SetPinned(ctx, first, true))
	list, err = s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, list[0].ID)
	assert.True(t, list[0].Pinned)

	require.NoError(t, s.RecordInteraction(ctx, Interaction{ConversationID: first, UserPrompt: "q", Response: "a"}))
	require.NoError(t, s.DeleteConversation(ctx, first))
	_, err = s.Messages(ctx, first)
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.ErrorIs(t, s.DeleteConversation(ctx, first), ErrConversationNotFound)
	require.ErrorIs(t, s.SetPinned(ctx, "missing", true), ErrConversationNotFound)
}

func TestSQLiteStoreSetTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateConversation(ctx, "first prompt...")
	require.NoError(t, err)
	require.NoError(t, s.SetTitle(ctx, id, "Go questions"))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Go questions", list[0].Title)

	require.Error(t, s.SetTitle(ctx, id, "  "))
	require.ErrorIs(t, s.SetTitle(ctx, "missing", "x"), ErrConversationNotFound)
}

func TestSQLiteStoreFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RecordFeedback(ctx, FeedbackRecord{MessageID: "c1", Type: "up", Comment: "Feedback for msg index 1"}))
	require.NoError(t, s.RecordFeedback(ctx, FeedbackRecord{MessageID: "c1", Type: "down"}))
	require.NoError(t, s.RecordFeedback(ctx, FeedbackRecord{MessageID: "c2", Type: "up"}))

	n, err := s.CountFeedback(ctx, "up")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStoreClosed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.CreateConversation(context.Background(), "x")
	require.Error(t, err)
}

func TestConversationTitle(t *testing.T) {
	assert.Equal(t, "short...", ConversationTitle("short"))
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123...", ConversationTitle("abcdefghijklmnopqrstuvwxyz0123456789"))
}

func TestHTTPServiceMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/history/abc":
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{"role": "user", "content": "hi"},
				{"role": "assistant", "content": "hello", "sources": []map[string]string{{"title": "Doc", "url": "#"}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc := NewHTTPService(apiclient.NewClient(srv.URL))

	msgs, err := svc.Messages(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	assert.Equal(t, []conversation.Source{{Title: "Doc", URL: "#"}}, msgs[1].Sources)

	_, err = svc.Messages(context.Background(), "missing")
	require.ErrorIs(t, err, ErrConversationNotFound)

	_, err = svc.Messages(context.Background(), "")
	require.Error(t, err)
}
