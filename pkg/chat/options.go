package chat

import (
	"github.com/go-go-golems/branchat/pkg/documents"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/feedback"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/go-go-golems/branchat/pkg/settings"
)

type SessionOption func(*Session)

func WithHistory(h history.Service) SessionOption {
	return func(s *Session) {
		s.history = h
	}
}

func WithFeedback(f feedback.Service) SessionOption {
	return func(s *Session) {
		s.feedback = f
	}
}

func WithDocuments(d documents.Service) SessionOption {
	return func(s *Session) {
		s.documents = d
	}
}

func WithEventSink(sink events.EventSink) SessionOption {
	return func(s *Session) {
		s.sink = sink
	}
}

func WithRetrySettings(rs *settings.RetrySettings) SessionOption {
	return func(s *Session) {
		if rs != nil {
			s.retry = *rs
		}
	}
}

// WithSessionID starts the session on an existing conversation without
// loading it. Use LoadSession to fetch its history.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.sessionID = id
	}
}
