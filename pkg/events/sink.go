package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink receives the events of a session. Publishing must not block the
// session for long; failures are reported but never abort an operation.
type EventSink interface {
	PublishEvent(event Event) error
}

// NullSink drops every event.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error { return nil }

var _ EventSink = NullSink{}

// WatermillSink publishes events as JSON messages on a watermill topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// RecordingSink keeps every published event in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *RecordingSink) PublishEvent(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of the given type, in publish order.
func (r *RecordingSink) OfType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []Event
	for _, e := range r.events {
		if e.Type == t {
			ret = append(ret, e)
		}
	}
	return ret
}

var _ EventSink = (*RecordingSink)(nil)
