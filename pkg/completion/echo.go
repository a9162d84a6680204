package completion

import (
	"context"
	"fmt"
)

// EchoClient answers every prompt with the prompt itself. Used for dry runs.
type EchoClient struct{}

var _ Client = EchoClient{}

func (EchoClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := ""
	if req.ConversationID != nil {
		id = *req.ConversationID
	}
	return &Response{
		Response:       fmt.Sprintf("[%s] %s", req.Model, req.Message),
		ConversationID: id,
		Strategy:       "echo",
	}, nil
}
