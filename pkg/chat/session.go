// Package chat drives an interactive chat session: it owns the timeline of
// the active conversation, sends prompts through a completion backend with
// bounded retry and branches the history when past turns are edited or
// regenerated.
//
// A Session admits one request at a time. Sends, edits and reruns issued while
// a request is in flight fail with ErrBusy without touching the timeline.
// Network calls run outside the session lock, so readers such as Timeline and
// Busy never block on a slow backend.
package chat

import (
	"sync"

	"github.com/go-go-golems/branchat/pkg/completion"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/documents"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/feedback"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/rs/zerolog/log"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	default:
		return "unknown"
	}
}

// RequestState tells whether a request is in flight and which one.
type RequestState struct {
	Phase     Phase
	RequestID string
}

func (rs RequestState) Busy() bool {
	return rs.Phase == PhasePending
}

type Session struct {
	mu sync.Mutex

	timeline  conversation.Timeline
	state     RequestState
	sessionID string
	// attachment is the name of the last uploaded document, carried by the
	// next send.
	attachment string
	// generation changes on every LoadSession so that results of requests
	// started on an earlier conversation can be recognized and dropped.
	generation uint64

	completion completion.Client
	history    history.Service
	feedback   feedback.Service
	documents  documents.Service
	sink       events.EventSink
	retry      settings.RetrySettings
}

func NewSession(client completion.Client, options ...SessionOption) *Session {
	ret := &Session{
		completion: client,
		feedback:   feedback.NullService{},
		documents:  documents.UnsupportedService{},
		sink:       events.NullSink{},
		retry:      *settings.NewRetrySettings(),
	}
	for _, o := range options {
		o(ret)
	}
	if ret.retry.MaxRetries < 0 {
		ret.retry.MaxRetries = 0
	}
	return ret
}

// Timeline returns the current snapshot. Snapshots are immutable, later
// changes produce new ones.
func (s *Session) Timeline() conversation.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Busy()
}

func (s *Session) State() RequestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the id of the active conversation, empty while unsaved.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) PendingAttachment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// publish must be called without holding s.mu, sinks may call back into the
// session.
func (s *Session) publish(evs ...events.Event) {
	for _, e := range evs {
		if err := s.sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("could not publish session event")
		}
	}
}
