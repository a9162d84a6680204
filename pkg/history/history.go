// Package history reads the persisted turns of a conversation.
//
// Two implementations exist: HTTPService asks the remote API, SQLiteStore keeps
// conversations in a local database and is written to by the local completion
// backend.
package history

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/pkg/errors"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Message is one persisted turn.
type Message struct {
	Role    conversation.Role     `json:"role"`
	Content string                `json:"content"`
	Sources []conversation.Source `json:"sources,omitempty"`
}

// Service returns the persisted turns of a conversation in chronological order.
type Service interface {
	Messages(ctx context.Context, conversationID string) ([]Message, error)
}

type HTTPService struct {
	client *apiclient.Client
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(client *apiclient.Client) *HTTPService {
	return &HTTPService{client: client}
}

func (s *HTTPService) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is empty")
	}
	var ret []Message
	path := "/chat/history/" + url.PathEscape(conversationID)
	if err := s.client.DoJSON(ctx, http.MethodGet, path, nil, &ret); err != nil {
		var statusErr *apiclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, errors.Wrap(ErrConversationNotFound, conversationID)
		}
		return nil, errors.Wrap(err, "could not fetch history")
	}
	return ret, nil
}
