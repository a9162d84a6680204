package completion

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrScriptExhausted = errors.New("mock completion script exhausted")

// Reply is one scripted outcome of a MockClient.
type Reply struct {
	Response *Response
	Err      error
}

func Succeed(text string) Reply {
	return Reply{Response: &Response{Response: text}}
}

func Fail(err error) Reply {
	return Reply{Err: err}
}

// MockClient returns scripted replies in order and records every request.
// Once the script is used up, it fails with ErrScriptExhausted.
type MockClient struct {
	mu       sync.Mutex
	replies  []Reply
	index    int
	requests []Request
	// OnComplete, if set, runs before each reply is returned.
	OnComplete func(req *Request)
}

var _ Client = (*MockClient)(nil)

func NewMockClient(replies ...Reply) *MockClient {
	return &MockClient{replies: replies}
}

func (m *MockClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	var reply Reply
	exhausted := m.index >= len(m.replies)
	if !exhausted {
		reply = m.replies[m.index]
		m.index++
	}
	hook := m.OnComplete
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if exhausted {
		return nil, ErrScriptExhausted
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	ret := *reply.Response
	return &ret, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
