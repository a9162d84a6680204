package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func chatSettings(cs *settings.ChatSettings) settings.ChatSettings {
	if cs == nil {
		return *settings.NewChatSettings()
	}
	return *cs
}

func rejected(err error) (Outcome, error) {
	return Outcome{NodeIndex: -1, Err: err}, err
}

// SendMessage appends text as a new user turn and asks for an answer, which
// is appended as a new assistant node. A pending attachment is consumed: its
// name is noted on the user turn and passed along with the prompt. If every
// attempt fails, a sentinel assistant node is appended instead.
func (s *Session) SendMessage(ctx context.Context, cs *settings.ChatSettings, text string) (Outcome, error) {
	chat := chatSettings(cs)

	t, sub, err := s.begin(func(tl conversation.Timeline) (conversation.Timeline, *submission, error) {
		if strings.TrimSpace(text) == "" && s.attachment == "" {
			return tl, nil, ErrEmptyMessage
		}
		prompt := text
		if s.attachment != "" {
			prompt += " (Context: Processed file " + s.attachment + ")"
		}
		next, err := conversation.ApplyAll(tl, conversation.MutateAppendUserAttachment(text, s.attachment))
		if err != nil {
			return tl, nil, err
		}
		s.attachment = ""
		return next, &submission{
			mode:    ModeSend,
			prompt:  prompt,
			history: next.History(),
			chat:    chat,
		}, nil
	})
	if err != nil {
		return rejected(err)
	}
	return s.orchestrate(ctx, t, sub)
}

// EditMessage adds text as a new version of the user node at i, drops every
// node after it and asks for an answer to the edited turn.
func (s *Session) EditMessage(ctx context.Context, cs *settings.ChatSettings, i int, text string) (Outcome, error) {
	chat := chatSettings(cs)

	t, sub, err := s.begin(func(tl conversation.Timeline) (conversation.Timeline, *submission, error) {
		node, err := tl.At(i)
		if err != nil {
			return tl, nil, errors.Wrapf(ErrInvalidIndex, "cannot edit message %d", i)
		}
		if node.Role != conversation.RoleUser {
			return tl, nil, errors.Wrapf(ErrInvalidTarget, "message %d is not a user message", i)
		}
		if strings.TrimSpace(text) == "" {
			return tl, nil, ErrEmptyMessage
		}
		next, err := conversation.ApplyAll(tl,
			conversation.MutateAppendVersion(i, conversation.RoleUser, conversation.Variant{Content: text}),
			conversation.MutateTruncateAfter(i),
		)
		if err != nil {
			return tl, nil, err
		}
		log.Debug().Int("index", i).Int("dropped", tl.Len()-next.Len()).Msg("branching at edited message")
		return next, &submission{
			mode:    ModeEdit,
			prompt:  text,
			history: next.History(),
			chat:    chat,
		}, nil
	})
	if err != nil {
		return rejected(err)
	}
	return s.orchestrate(ctx, t, sub)
}

// RerunMessage regenerates the assistant node at i from the turns before it.
// The answer becomes a new selected version of that node; a failure leaves
// the node as it was.
func (s *Session) RerunMessage(ctx context.Context, cs *settings.ChatSettings, i int) (Outcome, error) {
	chat := chatSettings(cs)

	t, sub, err := s.begin(func(tl conversation.Timeline) (conversation.Timeline, *submission, error) {
		node, err := tl.At(i)
		if err != nil {
			return tl, nil, errors.Wrapf(ErrInvalidIndex, "cannot rerun message %d", i)
		}
		if i == 0 {
			return tl, nil, errors.Wrap(ErrInvalidTarget, "the first message has no prompt to rerun")
		}
		if node.Role != conversation.RoleAssistant {
			return tl, nil, errors.Wrapf(ErrInvalidTarget, "message %d is not an assistant message", i)
		}
		u := tl.LastIndexOf(conversation.RoleUser, i)
		if u < 0 {
			return tl, nil, errors.Wrapf(ErrInvalidTarget, "no user message precedes message %d", i)
		}
		prompt, _ := tl.At(u)
		prefix, err := tl.Prefix(i)
		if err != nil {
			return tl, nil, err
		}
		target := i
		return tl, &submission{
			mode:    ModeRerun,
			prompt:  prompt.Content(),
			history: prefix.History(),
			target:  &target,
			chat:    chat,
		}, nil
	})
	if err != nil {
		return rejected(err)
	}
	return s.orchestrate(ctx, t, sub)
}

// SetVersion selects another version of the node at i. A delta leading out of
// the node's versions leaves it unchanged. Navigation is allowed while a
// request is in flight.
func (s *Session) SetVersion(i int, delta int) (conversation.Timeline, error) {
	s.mu.Lock()
	before, err := s.timeline.At(i)
	if err != nil {
		tl := s.timeline
		s.mu.Unlock()
		return tl, errors.Wrapf(ErrInvalidIndex, "cannot change version of message %d", i)
	}
	next, err := conversation.ApplyAll(s.timeline, conversation.MutateNavigate(i, delta))
	if err != nil {
		tl := s.timeline
		s.mu.Unlock()
		return tl, err
	}
	s.timeline = next
	after, _ := next.At(i)
	sessionID := s.sessionID
	s.mu.Unlock()

	if after.CurrentVersionIndex != before.CurrentVersionIndex {
		s.publish(events.NewEvent(events.EventTypeVersionChanged,
			events.WithSessionID(sessionID),
			events.WithNodeIndex(i),
			events.WithMessage(fmt.Sprintf("version %d of %d", after.CurrentOrdinal(), after.VersionCount())),
		))
	}
	return next, nil
}
