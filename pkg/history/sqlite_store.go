package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/branchat/pkg/conversation"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const sqliteHistorySchemaV1 = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    is_pinned INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS interactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    user_prompt TEXT NOT NULL,
    llm_response TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    sources_json TEXT NOT NULL DEFAULT '[]',
    created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS interactions_conversation ON interactions(conversation_id, created_at_ms);
CREATE TABLE IF NOT EXISTS feedback (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL,
    type TEXT NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL
);
`

// Conversation is a row of the conversation list.
type Conversation struct {
	ID        string
	Title     string
	Pinned    bool
	CreatedAt time.Time
}

// Interaction is one persisted prompt/answer exchange.
type Interaction struct {
	ConversationID string
	UserPrompt     string
	Response       string
	Strategy       string
	Sources        []conversation.Source
}

// FeedbackRecord is a thumbs up/down on an answer.
type FeedbackRecord struct {
	MessageID string
	Type      string
	Comment   string
}

// SQLiteStore persists conversations, their interactions and feedback.
//
// Each interaction row holds a user prompt and the answer to it; Messages
// flattens the rows back into alternating user and assistant turns.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	now    func() time.Time
	closed bool
}

var _ Service = (*SQLiteStore)(nil)

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite history store: empty dsn")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// a single connection keeps ":memory:" databases alive across queries
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("dsn", dsn).Msg("history store ready")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return errors.Wrap(err, "enable foreign keys")
	}
	if _, err := s.db.Exec(sqliteHistorySchemaV1); err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) ensureOpen() error {
	if s.closed {
		return errors.New("sqlite history store is closed")
	}
	return nil
}

// ConversationTitle derives a conversation title from its first prompt.
func ConversationTitle(prompt string) string {
	runes := []rune(strings.TrimSpace(prompt))
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes) + "..."
}

// CreateConversation inserts a new conversation and returns its id.
func (s *SQLiteStore) CreateConversation(ctx context.Context, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, is_pinned, created_at_ms) VALUES (?, ?, 0, ?)",
		id, title, s.now().UnixMilli())
	if err != nil {
		return "", errors.Wrap(err, "insert conversation")
	}
	return id, nil
}

// ListConversations returns pinned conversations first, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, is_pinned, created_at_ms FROM conversations ORDER BY is_pinned DESC, created_at_ms DESC, rowid DESC")
	if err != nil {
		return nil, errors.Wrap(err, "query conversations")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []Conversation
	for rows.Next() {
		var c Conversation
		var pinned int
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Title, &pinned, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		c.Pinned = pinned != 0
		c.CreatedAt = time.UnixMilli(createdAt)
		ret = append(ret, c)
	}
	return ret, errors.Wrap(rows.Err(), "iterate conversations")
}

// SetPinned pins or unpins a conversation.
func (s *SQLiteStore) SetPinned(ctx context.Context, conversationID string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	v := 0
	if pinned {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET is_pinned = ? WHERE id = ?", v, conversationID)
	if err != nil {
		return errors.Wrap(err, "update conversation")
	}
	return expectOneRow(res, conversationID)
}

// SetTitle renames a conversation.
func (s *SQLiteStore) SetTitle(ctx context.Context, conversationID string, title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET title = ? WHERE id = ?", title, conversationID)
	if err != nil {
		return errors.Wrap(err, "update conversation")
	}
	return expectOneRow(res, conversationID)
}

// DeleteConversation removes a conversation and its interactions.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM interactions WHERE conversation_id = ?", conversationID); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "delete interactions")
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conversationID)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "delete conversation")
	}
	if err := expectOneRow(res, conversationID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// RecordInteraction appends a prompt/answer exchange to a conversation.
func (s *SQLiteStore) RecordInteraction(ctx context.Context, in Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	sources := in.Sources
	if sources == nil {
		sources = []conversation.Source{}
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return errors.Wrap(err, "marshal sources")
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO interactions (conversation_id, user_prompt, llm_response, source, sources_json, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)",
		in.ConversationID, in.UserPrompt, in.Response, in.Strategy, string(b), s.now().UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "insert interaction into %s", in.ConversationID)
	}
	return nil
}

// Messages flattens the interactions of a conversation into turns.
func (s *SQLiteStore) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	exists, err := s.conversationExists(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrap(ErrConversationNotFound, conversationID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_prompt, llm_response, sources_json FROM interactions WHERE conversation_id = ? ORDER BY created_at_ms ASC, id ASC",
		conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "query interactions")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []Message{}
	for rows.Next() {
		var prompt, response, sourcesJSON string
		if err := rows.Scan(&prompt, &response, &sourcesJSON); err != nil {
			return nil, errors.Wrap(err, "scan interaction")
		}
		var sources []conversation.Source
		if sourcesJSON != "" {
			if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
				return nil, errors.Wrap(err, "decode sources")
			}
		}
		ret = append(ret,
			Message{Role: conversation.RoleUser, Content: prompt},
			Message{Role: conversation.RoleAssistant, Content: response, Sources: sources},
		)
	}
	return ret, errors.Wrap(rows.Err(), "iterate interactions")
}

// RecentTurns returns the last limit interactions of a conversation as
// chronological user/assistant pairs.
func (s *SQLiteStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]conversation.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_prompt, llm_response FROM interactions WHERE conversation_id = ? ORDER BY created_at_ms DESC, id DESC LIMIT ?",
		conversationID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent interactions")
	}
	defer func() {
		_ = rows.Close()
	}()

	var pairs [][2]string
	for rows.Next() {
		var p [2]string
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, errors.Wrap(err, "scan interaction")
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate interactions")
	}

	ret := make([]conversation.HistoryEntry, 0, 2*len(pairs))
	for i := len(pairs) - 1; i >= 0; i-- {
		ret = append(ret,
			conversation.HistoryEntry{Role: conversation.RoleUser, Content: pairs[i][0]},
			conversation.HistoryEntry{Role: conversation.RoleAssistant, Content: pairs[i][1]},
		)
	}
	return ret, nil
}

func (s *SQLiteStore) RecordFeedback(ctx context.Context, f FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (message_id, type, comment, created_at_ms) VALUES (?, ?, ?, ?)",
		f.MessageID, f.Type, f.Comment, s.now().UnixMilli())
	return errors.Wrap(err, "insert feedback")
}

// CountFeedback returns the number of feedback rows of the given type.
func (s *SQLiteStore) CountFeedback(ctx context.Context, feedbackType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback WHERE type = ?", feedbackType).Scan(&n)
	return n, errors.Wrap(err, "count feedback")
}

func (s *SQLiteStore) conversationExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query conversation")
	}
	return n > 0, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(ErrConversationNotFound, id)
	}
	return nil
}
