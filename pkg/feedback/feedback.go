// Package feedback sends thumbs up/down ratings of assistant answers.
package feedback

import (
	"context"
	"net/http"

	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/pkg/errors"
)

type Type string

const (
	TypeUp   Type = "up"
	TypeDown Type = "down"
)

var ErrInvalidType = errors.New("feedback type must be up or down")

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeUp, TypeDown:
		return Type(s), nil
	default:
		return "", errors.Wrapf(ErrInvalidType, "got %q", s)
	}
}

type Feedback struct {
	MessageID string `json:"message_id"`
	Type      Type   `json:"type"`
	Comment   string `json:"comment"`
}

type Service interface {
	Send(ctx context.Context, f Feedback) error
}

// HTTPService posts feedback to the remote API.
type HTTPService struct {
	client *apiclient.Client
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(client *apiclient.Client) *HTTPService {
	return &HTTPService{client: client}
}

func (s *HTTPService) Send(ctx context.Context, f Feedback) error {
	if _, err := ParseType(string(f.Type)); err != nil {
		return err
	}
	err := s.client.DoJSON(ctx, http.MethodPost, "/feedback/", f, nil)
	return errors.Wrap(err, "could not send feedback")
}

// SQLiteService stores feedback next to the local conversation history.
type SQLiteService struct {
	store *history.SQLiteStore
}

var _ Service = (*SQLiteService)(nil)

func NewSQLiteService(store *history.SQLiteStore) *SQLiteService {
	return &SQLiteService{store: store}
}

func (s *SQLiteService) Send(ctx context.Context, f Feedback) error {
	if _, err := ParseType(string(f.Type)); err != nil {
		return err
	}
	return s.store.RecordFeedback(ctx, history.FeedbackRecord{
		MessageID: f.MessageID,
		Type:      string(f.Type),
		Comment:   f.Comment,
	})
}

// NullService discards feedback, for backends without a feedback endpoint.
type NullService struct{}

func (NullService) Send(context.Context, Feedback) error { return nil }

var _ Service = NullService{}
