package completion

import (
	"context"
	"net/http"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/pkg/errors"
)

// HTTPClient posts prompts to the chat endpoint of the remote API. The server
// resolves persistence for the conversation id it receives.
type HTTPClient struct {
	client *apiclient.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(client *apiclient.Client) *HTTPClient {
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	var ret Response
	if err := c.client.DoJSON(ctx, http.MethodPost, "/chat/", req, &ret); err != nil {
		return nil, errors.Wrap(err, "completion request failed")
	}
	return &ret, nil
}
