package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-go-golems/branchat/pkg/completion"
	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Mode string

const (
	ModeSend  Mode = "send"
	ModeRerun Mode = "rerun"
	ModeEdit  Mode = "edit-resubmit"
)

// Outcome reports how an orchestrated request ended.
type Outcome struct {
	Succeeded bool
	Attempts  int
	// NodeIndex is the node that received the answer or the sentinel, -1 if
	// the timeline was not changed by the result.
	NodeIndex int
	Err       error
}

// RetriesExhaustedError carries the error of the last attempt. It matches
// ErrRetriesExhausted with errors.Is.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s (%d attempts): %v", ErrRetriesExhausted.Error(), e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

type submission struct {
	mode    Mode
	prompt  string
	history []conversation.HistoryEntry
	// target is the assistant node receiving the answer as a new version.
	target *int
	chat   settings.ChatSettings
}

// ticket identifies a request in flight and the conversation it belongs to.
type ticket struct {
	requestID  string
	generation uint64
	sessionID  string
}

type prepareFunc func(t conversation.Timeline) (conversation.Timeline, *submission, error)

// begin runs prepare on the current timeline and enters the pending state.
// Nothing changes if the session is busy or prepare fails.
func (s *Session) begin(prepare prepareFunc) (ticket, *submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy() {
		return ticket{}, nil, ErrBusy
	}
	next, sub, err := prepare(s.timeline)
	if err != nil {
		return ticket{}, nil, err
	}

	t := ticket{
		requestID:  uuid.NewString(),
		generation: s.generation,
		sessionID:  s.sessionID,
	}
	s.timeline = next
	s.state = RequestState{Phase: PhasePending, RequestID: t.requestID}
	return t, sub, nil
}

func (s *Session) retryPolicy(ctx context.Context) backoff.BackOff {
	// WithMaxRetries treats 0 as unlimited.
	if s.retry.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if s.retry.Delay > 0 {
		b = backoff.NewConstantBackOff(s.retry.Delay)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retry.MaxRetries)), ctx)
}

// orchestrate performs the request of sub with retry and folds the result
// into the latest timeline.
func (s *Session) orchestrate(ctx context.Context, t ticket, sub *submission) (Outcome, error) {
	req := &completion.Request{
		Message:      sub.prompt,
		Model:        sub.chat.Model,
		SystemPrompt: sub.chat.SystemPrompt,
		History:      sub.history,
	}
	if t.sessionID != "" {
		id := t.sessionID
		req.ConversationID = &id
	}

	log.Debug().
		Str("request_id", t.requestID).
		Str("mode", string(sub.mode)).
		Str("model", req.Model).
		Int("history", len(req.History)).
		Msg("starting completion request")
	s.publish(events.NewEvent(events.EventTypeRequestStarted,
		events.WithSessionID(t.sessionID),
		events.WithRequestID(t.requestID),
		events.WithMode(string(sub.mode)),
	))

	attempts := 0
	var resp *completion.Response
	op := func() error {
		attempts++
		r, err := s.completion.Complete(ctx, req)
		if err == nil && r == nil {
			err = errors.New("completion returned no response")
		}
		if err != nil {
			log.Warn().Err(err).
				Str("request_id", t.requestID).
				Int("attempt", attempts).
				Msg("completion attempt failed")
			s.publish(events.NewEvent(events.EventTypeAttemptFailed,
				events.WithSessionID(t.sessionID),
				events.WithRequestID(t.requestID),
				events.WithMode(string(sub.mode)),
				events.WithAttempt(attempts),
				events.WithError(err),
			))
			return err
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Str("request_id", t.requestID).Dur("wait", wait).Msg("retrying completion")
	}

	err := backoff.RetryNotify(op, s.retryPolicy(ctx), notify)
	return s.finish(t, sub, attempts, resp, err)
}

func (s *Session) finish(t ticket, sub *submission, attempts int, resp *completion.Response, reqErr error) (Outcome, error) {
	s.mu.Lock()

	if s.generation != t.generation || s.state.RequestID != t.requestID {
		s.mu.Unlock()
		log.Info().
			Str("request_id", t.requestID).
			Str("session_id", t.sessionID).
			Msg("dropping result of a request started on another session")
		s.publish(events.NewEvent(events.EventTypeRequestDiscarded,
			events.WithSessionID(t.sessionID),
			events.WithRequestID(t.requestID),
			events.WithMode(string(sub.mode)),
		))
		return Outcome{Succeeded: reqErr == nil, Attempts: attempts, NodeIndex: -1, Err: reqErr}, ErrSessionSwitched
	}

	s.state = RequestState{Phase: PhaseIdle}
	outcome := Outcome{Attempts: attempts, NodeIndex: -1}

	if reqErr == nil {
		next, idx, err := fold(s.timeline, sub, resp.Variant())
		if err != nil {
			s.mu.Unlock()
			log.Error().Err(err).Str("request_id", t.requestID).Msg("could not fold completion result")
			outcome.Err = err
			return outcome, err
		}
		s.timeline = next
		if s.sessionID == "" && resp.ConversationID != "" {
			s.sessionID = resp.ConversationID
		}
		sessionID := s.sessionID
		s.mu.Unlock()

		outcome.Succeeded = true
		outcome.NodeIndex = idx
		log.Debug().Str("request_id", t.requestID).Int("attempts", attempts).Int("node_index", idx).Msg("completion request succeeded")
		s.publish(events.NewEvent(events.EventTypeRequestSucceeded,
			events.WithSessionID(sessionID),
			events.WithRequestID(t.requestID),
			events.WithMode(string(sub.mode)),
			events.WithAttempt(attempts),
			events.WithNodeIndex(idx),
		))
		return outcome, nil
	}

	exhausted := &RetriesExhaustedError{Attempts: attempts, Err: reqErr}
	outcome.Err = exhausted
	switch {
	case sub.mode == ModeSend:
		s.timeline = s.timeline.Append(conversation.NewAssistantNode(SentinelText, nil))
		outcome.NodeIndex = s.timeline.Len() - 1
	case sub.target != nil:
		outcome.NodeIndex = *sub.target
	}
	s.mu.Unlock()

	log.Error().Err(reqErr).
		Str("request_id", t.requestID).
		Str("mode", string(sub.mode)).
		Int("attempts", attempts).
		Msg("completion request failed")
	s.publish(events.NewEvent(events.EventTypeRequestFailed,
		events.WithSessionID(t.sessionID),
		events.WithRequestID(t.requestID),
		events.WithMode(string(sub.mode)),
		events.WithAttempt(attempts),
		events.WithError(reqErr),
	))
	return outcome, exhausted
}

// fold adds the answer v to t: as a new version of the target for reruns,
// as a new assistant node otherwise.
func fold(t conversation.Timeline, sub *submission, v conversation.Variant) (conversation.Timeline, int, error) {
	if sub.target != nil && sub.mode != ModeSend {
		next, err := conversation.ApplyAll(t, conversation.MutateAppendVersion(*sub.target, conversation.RoleAssistant, v))
		if err != nil {
			return t, -1, err
		}
		return next, *sub.target, nil
	}
	next, err := conversation.ApplyAll(t, conversation.MutateAppendAssistant(v))
	if err != nil {
		return t, -1, err
	}
	return next, next.Len() - 1, nil
}
