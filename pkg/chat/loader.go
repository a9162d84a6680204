package chat

import (
	"context"
	"strconv"

	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LoadSession makes id the active conversation and replaces the timeline
// with its persisted history, one single-version node per message. An empty
// id starts an unsaved conversation without asking the history service.
//
// Failing to fetch the history is not an error: the session starts with an
// empty timeline and a session-load-failed event is published. Requests in
// flight on the previous conversation are abandoned, their results dropped.
// Submissions are rejected with ErrBusy while the history is fetched.
func (s *Session) LoadSession(ctx context.Context, id string) (conversation.Timeline, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.sessionID = id
	s.attachment = ""
	s.timeline = conversation.NewTimeline()
	s.state = RequestState{Phase: PhaseIdle}
	if id != "" {
		s.state = RequestState{Phase: PhasePending, RequestID: uuid.NewString()}
	}
	svc := s.history
	s.mu.Unlock()

	if id == "" {
		log.Debug().Msg("started new conversation")
		s.publish(events.NewEvent(events.EventTypeSessionLoaded))
		return conversation.NewTimeline(), nil
	}

	tl, err := fetchTimeline(ctx, svc, id)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		log.Debug().Str("session_id", id).Msg("dropping history of a superseded load")
		return tl, ErrSessionSwitched
	}
	s.timeline = tl
	s.state = RequestState{Phase: PhaseIdle}
	s.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("could not load conversation history")
		s.publish(events.NewEvent(events.EventTypeSessionLoadFailed,
			events.WithSessionID(id),
			events.WithError(err),
		))
		return tl, nil
	}

	log.Debug().Str("session_id", id).Int("messages", tl.Len()).Msg("loaded conversation")
	s.publish(events.NewEvent(events.EventTypeSessionLoaded,
		events.WithSessionID(id),
		events.WithMessage(strconv.Itoa(tl.Len())+" messages"),
	))
	return tl, nil
}

func fetchTimeline(ctx context.Context, svc history.Service, id string) (conversation.Timeline, error) {
	if svc == nil {
		return conversation.NewTimeline(), errors.New("no history service configured")
	}
	msgs, err := svc.Messages(ctx, id)
	if err != nil {
		return conversation.NewTimeline(), err
	}
	nodes := make([]conversation.Node, 0, len(msgs))
	for i, m := range msgs {
		if !m.Role.Valid() {
			log.Warn().Str("session_id", id).Int("index", i).Str("role", string(m.Role)).Msg("skipping message with unknown role")
			continue
		}
		nodes = append(nodes, conversation.NewNode(m.Role, conversation.Variant{Content: m.Content, Sources: m.Sources}))
	}
	return conversation.NewTimeline(nodes...), nil
}
