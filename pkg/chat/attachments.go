package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/documents"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/feedback"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AttachDocument uploads content to the knowledge base. On success, name is
// remembered and carried by the next SendMessage. A failed upload is returned
// and nothing is remembered.
func (s *Session) AttachDocument(ctx context.Context, name string, content io.Reader) (*documents.UploadResult, error) {
	s.mu.Lock()
	gen := s.generation
	svc := s.documents
	s.mu.Unlock()

	res, err := svc.Upload(ctx, name, content)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("could not upload document")
		return nil, err
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return res, ErrSessionSwitched
	}
	s.attachment = name
	sessionID := s.sessionID
	s.mu.Unlock()

	log.Debug().Str("name", name).Int("chunks", res.Chunks).Msg("document attached")
	s.publish(events.NewEvent(events.EventTypeDocumentAttached,
		events.WithSessionID(sessionID),
		events.WithMessage(name),
	))
	return res, nil
}

// AttachFile attaches the file at path under its base name.
func (s *Session) AttachFile(ctx context.Context, path string) (*documents.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return s.AttachDocument(ctx, filepath.Base(path), f)
}

// Feedback rates the assistant node at i. Only invalid arguments are
// returned; a failure to deliver the rating is logged and published.
func (s *Session) Feedback(ctx context.Context, i int, t feedback.Type) error {
	if _, err := feedback.ParseType(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	node, err := s.timeline.At(i)
	sessionID := s.sessionID
	svc := s.feedback
	s.mu.Unlock()

	if err != nil {
		return errors.Wrapf(ErrInvalidIndex, "cannot rate message %d", i)
	}
	if node.Role != conversation.RoleAssistant {
		return errors.Wrapf(ErrInvalidTarget, "message %d is not an assistant message", i)
	}

	messageID := sessionID
	if messageID == "" {
		messageID = "unknown"
	}
	f := feedback.Feedback{
		MessageID: messageID,
		Type:      t,
		Comment:   fmt.Sprintf("Feedback for msg index %d", i),
	}
	if err := svc.Send(ctx, f); err != nil {
		log.Warn().Err(err).Int("index", i).Msg("could not send feedback")
		s.publish(events.NewEvent(events.EventTypeFeedbackFailed,
			events.WithSessionID(sessionID),
			events.WithNodeIndex(i),
			events.WithError(err),
		))
		return nil
	}

	s.publish(events.NewEvent(events.EventTypeFeedbackSent,
		events.WithSessionID(sessionID),
		events.WithNodeIndex(i),
		events.WithMessage(string(t)),
	))
	return nil
}
