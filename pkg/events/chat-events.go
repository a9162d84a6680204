package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeRequestStarted to EventTypeRequestFailed trace one orchestrated
	// completion request.
	EventTypeRequestStarted   EventType = "request-started"
	EventTypeAttemptFailed    EventType = "attempt-failed"
	EventTypeRequestSucceeded EventType = "request-succeeded"
	EventTypeRequestFailed    EventType = "request-failed"
	// A result arrived after the session was switched and was dropped.
	EventTypeRequestDiscarded EventType = "request-discarded"

	EventTypeSessionLoaded     EventType = "session-loaded"
	EventTypeSessionLoadFailed EventType = "session-load-failed"

	EventTypeVersionChanged   EventType = "version-changed"
	EventTypeDocumentAttached EventType = "document-attached"
	EventTypeFeedbackSent     EventType = "feedback-sent"
	EventTypeFeedbackFailed   EventType = "feedback-failed"
)

// Event is a notification about something that happened in a chat session.
// Only the fields relevant to the type are set.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	NodeIndex *int      `json:"node_index,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type EventOption func(*Event)

func WithSessionID(id string) EventOption {
	return func(e *Event) {
		e.SessionID = id
	}
}

func WithRequestID(id string) EventOption {
	return func(e *Event) {
		e.RequestID = id
	}
}

func WithMode(mode string) EventOption {
	return func(e *Event) {
		e.Mode = mode
	}
}

func WithAttempt(attempt int) EventOption {
	return func(e *Event) {
		e.Attempt = attempt
	}
}

func WithNodeIndex(i int) EventOption {
	return func(e *Event) {
		e.NodeIndex = &i
	}
}

func WithMessage(msg string) EventOption {
	return func(e *Event) {
		e.Message = msg
	}
}

func WithError(err error) EventOption {
	return func(e *Event) {
		if err != nil {
			e.Error = err.Error()
		}
	}
}

func NewEvent(type_ EventType, options ...EventOption) Event {
	ret := Event{
		ID:   uuid.New(),
		Type: type_,
		Time: time.Now(),
	}
	for _, o := range options {
		o(&ret)
	}
	return ret
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type))
	if e.SessionID != "" {
		ev.Str("session_id", e.SessionID)
	}
	if e.RequestID != "" {
		ev.Str("request_id", e.RequestID)
	}
	if e.Mode != "" {
		ev.Str("mode", e.Mode)
	}
	if e.Attempt > 0 {
		ev.Int("attempt", e.Attempt)
	}
	if e.NodeIndex != nil {
		ev.Int("node_index", *e.NodeIndex)
	}
	if e.Message != "" {
		ev.Str("message", e.Message)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

// NewEventFromJson decodes an event published by a WatermillSink.
func NewEventFromJson(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "could not decode event")
	}
	if e.Type == "" {
		return Event{}, errors.New("event has no type")
	}
	return e, nil
}
