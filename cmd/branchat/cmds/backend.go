package cmds

import (
	"github.com/go-go-golems/branchat/pkg/apiclient"
	"github.com/go-go-golems/branchat/pkg/chat"
	"github.com/go-go-golems/branchat/pkg/completion"
	"github.com/go-go-golems/branchat/pkg/documents"
	"github.com/go-go-golems/branchat/pkg/events"
	"github.com/go-go-golems/branchat/pkg/feedback"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend bundles the services a session talks to for one backend type.
type Backend struct {
	Completion completion.Client
	History    history.Service
	Feedback   feedback.Service
	Documents  documents.Service
	// Store is set for the local backend only.
	Store *history.SQLiteStore
}

func NewBackend(s *settings.Settings) (*Backend, error) {
	switch s.Backend {
	case settings.BackendRemote:
		client := apiclient.NewClientFromSettings(s.Client)
		return &Backend{
			Completion: completion.NewHTTPClient(client),
			History:    history.NewHTTPService(client),
			Feedback:   feedback.NewHTTPService(client),
			Documents:  documents.NewHTTPService(client),
		}, nil

	case settings.BackendLocal:
		store, err := history.NewSQLiteStore(s.Local.DatabasePath)
		if err != nil {
			return nil, err
		}
		api := completion.NewOpenAIAPI(s.Local.APIBaseURL, s.Local.APIKey)
		return &Backend{
			Completion: completion.NewLocalClient(api,
				completion.WithStore(store),
				completion.WithTemperature(s.Chat.Temperature),
			),
			History:   store,
			Feedback:  feedback.NewSQLiteService(store),
			Documents: documents.UnsupportedService{},
			Store:     store,
		}, nil

	case settings.BackendEcho:
		return &Backend{
			Completion: completion.EchoClient{},
			Feedback:   feedback.NullService{},
			Documents:  documents.UnsupportedService{},
		}, nil

	default:
		return nil, errors.Errorf("unknown backend %q", s.Backend)
	}
}

func (b *Backend) NewSession(s *settings.Settings, sink events.EventSink) *chat.Session {
	options := []chat.SessionOption{
		chat.WithFeedback(b.Feedback),
		chat.WithDocuments(b.Documents),
		chat.WithRetrySettings(s.Retry),
		chat.WithEventSink(sink),
	}
	if b.History != nil {
		options = append(options, chat.WithHistory(b.History))
	}
	return chat.NewSession(b.Completion, options...)
}

func (b *Backend) Close() error {
	if b.Store == nil {
		return nil
	}
	log.Debug().Msg("closing history store")
	return b.Store.Close()
}
