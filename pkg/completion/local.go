package completion

import (
	"context"
	"strings"

	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/go-go-golems/branchat/pkg/history"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultLocalSystemPrompt = "You are a helpful assistant."
	reasoningInstruction     = "You are a smart AI assistant. " +
		"Think step-by-step before answering. " +
		"If the user asks for code, explain it clearly in comments. " +
		"If you use context, cite it."
	localHistoryWindow = 10
	strategyDirect     = "direct"
)

// ChatCompleter is the subset of the go-openai client used by LocalClient.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LocalClient plays the role of the remote chat API on the local machine. It
// asks an OpenAI-compatible endpoint for the answer and, when a store is
// configured, creates conversations and records every exchange in it.
type LocalClient struct {
	api         ChatCompleter
	store       *history.SQLiteStore
	temperature float32
}

var _ Client = (*LocalClient)(nil)

type LocalOption func(*LocalClient)

func WithStore(store *history.SQLiteStore) LocalOption {
	return func(c *LocalClient) {
		c.store = store
	}
}

func WithTemperature(t float64) LocalOption {
	return func(c *LocalClient) {
		c.temperature = float32(t)
	}
}

func NewLocalClient(api ChatCompleter, options ...LocalOption) *LocalClient {
	ret := &LocalClient{api: api}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// NewOpenAIAPI creates a go-openai client for the given base URL, which may
// point at any OpenAI-compatible provider.
func NewOpenAIAPI(baseURL string, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *LocalClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	conversationID := ""
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
	}

	if c.store != nil && conversationID == "" {
		id, err := c.store.CreateConversation(ctx, history.ConversationTitle(req.Message))
		if err != nil {
			return nil, errors.Wrap(err, "could not create conversation")
		}
		conversationID = id
		log.Debug().Str("conversation_id", id).Msg("created conversation")
	}

	prior, err := c.priorTurns(ctx, conversationID, req)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: buildSystemPrompt(req.SystemPrompt),
	})
	for _, h := range prior {
		role := openai.ChatMessageRoleUser
		if h.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	text := resp.Choices[0].Message.Content

	if c.store != nil {
		err = c.store.RecordInteraction(ctx, history.Interaction{
			ConversationID: conversationID,
			UserPrompt:     req.Message,
			Response:       text,
			Strategy:       strategyDirect,
		})
		if err != nil {
			return nil, errors.Wrap(err, "could not record interaction")
		}
	}

	return &Response{
		Response:       text,
		Sources:        []conversation.Source{},
		ConversationID: conversationID,
		Strategy:       strategyDirect,
	}, nil
}

// priorTurns prefers the persisted history of the conversation, like the
// remote API does, and falls back to the history sent along the request.
func (c *LocalClient) priorTurns(ctx context.Context, conversationID string, req *Request) ([]conversation.HistoryEntry, error) {
	if c.store == nil || conversationID == "" {
		return priorTurns(req), nil
	}
	turns, err := c.store.RecentTurns(ctx, conversationID, localHistoryWindow)
	if err != nil {
		return nil, errors.Wrap(err, "could not load conversation history")
	}
	return turns, nil
}

func buildSystemPrompt(systemPrompt string) string {
	base := strings.TrimSpace(systemPrompt)
	if base == "" {
		base = defaultLocalSystemPrompt
	}
	return base + "\n\n[INSTRUCTIONS]: " + reasoningInstruction
}
