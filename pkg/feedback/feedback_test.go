package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	ty, err := ParseType("up")
	require.NoError(t, err)
	assert.Equal(t, TypeUp, ty)

	_, err = ParseType("sideways")
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestHTTPServicePostsFeedback(t *testing.T) {
	var got Feedback
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feedback/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":"Feedback received and behavior learned."}`))
	}))
	defer srv.Close()

	s := NewHTTPService(apiclient.NewClient(srv.URL))
	err := s.Send(context.Background(), Feedback{MessageID: "unknown", Type: TypeDown, Comment: "Feedback for msg index 1"})
	require.NoError(t, err)
	assert.Equal(t, Feedback{MessageID: "unknown", Type: TypeDown, Comment: "Feedback for msg index 1"}, got)
}

func TestHTTPServiceRejectsUnknownTypeWithoutRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	err := NewHTTPService(apiclient.NewClient(srv.URL)).Send(context.Background(), Feedback{Type: "meh"})
	require.ErrorIs(t, err, ErrInvalidType)
	assert.False(t, called)
}

func TestSQLiteServiceRecordsFeedback(t *testing.T) {
	ctx := context.Background()
	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "f.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	s := NewSQLiteService(store)
	require.NoError(t, s.Send(ctx, Feedback{MessageID: "c-1", Type: TypeUp, Comment: "Feedback for msg index 1"}))
	require.NoError(t, s.Send(ctx, Feedback{MessageID: "c-1", Type: TypeUp}))
	require.NoError(t, s.Send(ctx, Feedback{MessageID: "c-1", Type: TypeDown}))

	up, err := store.CountFeedback(ctx, "up")
	require.NoError(t, err)
	assert.Equal(t, 2, up)
}
