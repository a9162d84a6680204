// Package completion contains the backends that answer a single chat prompt.
//
// A Client performs exactly one exchange; retrying is left to the caller.
// HTTPClient talks to the remote chat API, LocalClient to an OpenAI-compatible
// endpoint while keeping history in SQLite, EchoClient answers offline.
package completion

import (
	"context"

	"github.com/go-go-golems/branchat/pkg/conversation"
)

// Request is the body of a completion exchange. History is not part of the
// wire format of the remote API; local backends use it to build the prompt.
type Request struct {
	Message        string                      `json:"message"`
	ConversationID *string                     `json:"conversation_id"`
	Model          string                      `json:"model"`
	SystemPrompt   string                      `json:"system_prompt"`
	History        []conversation.HistoryEntry `json:"-"`
}

type Response struct {
	Response       string                `json:"response"`
	Sources        []conversation.Source `json:"sources"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Strategy       string                `json:"strategy,omitempty"`
}

// Variant converts the response into a version of an assistant node.
func (r *Response) Variant() conversation.Variant {
	return conversation.Variant{Content: r.Response, Sources: r.Sources}
}

type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// priorTurns returns the history without the trailing user turn carrying the
// prompt itself.
func priorTurns(req *Request) []conversation.HistoryEntry {
	h := req.History
	if n := len(h); n > 0 && h[n-1].Role == conversation.RoleUser {
		h = h[:n-1]
	}
	return h
}
