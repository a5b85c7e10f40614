package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/wirebird/wirebird/src/engine"
)

const conversationColumns = `id, assistant_id, phone_number, channel, status, message_count, total_tokens, estimated_cost, session_vars, created_at, updated_at`

// GetConversation retrieves a conversation scoped to its assistant.
func GetConversation(ctx context.Context, db sqlscan.Querier, assistantID, conversationID string) (*engine.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ? AND assistant_id = ?`
	var row conversationRow
	err := sqlscan.Get(ctx, db, &row, query, conversationID, assistantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return row.toDomain()
}

// CreateConversation inserts a new conversation.
func CreateConversation(ctx context.Context, db Execer, conv *engine.Conversation) error {
	if conv.ConversationID == "" {
		conv.ConversationID = uuid.New().String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}

	var sessionVars *string
	if len(conv.SessionVars) > 0 {
		var err error
		sessionVars, err = marshalColumn(conv.SessionVars)
		if err != nil {
			return err
		}
	}

	query := `INSERT INTO conversations (` + conversationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		conv.ConversationID, conv.AssistantID, conv.PhoneNumber, string(conv.Channel), string(conv.Status),
		conv.MessageCount, conv.TotalTokens, conv.EstimatedCost, sessionVars, conv.CreatedAt, conv.UpdatedAt)
	return err
}

// ListConversationsByAssistant returns an assistant's conversations, most
// recently updated first.
func ListConversationsByAssistant(ctx context.Context, db sqlscan.Querier, assistantID string, limit int) ([]*engine.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE assistant_id = ? ORDER BY updated_at DESC LIMIT ?`
	var rows []conversationRow
	if err := sqlscan.Select(ctx, db, &rows, query, assistantID, limit); err != nil {
		return nil, err
	}
	out := make([]*engine.Conversation, 0, len(rows))
	for i := range rows {
		conv, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

// UpdateConversationStats bumps the message count and accumulates token
// and cost deltas.
func UpdateConversationStats(ctx context.Context, db Execer, assistantID, conversationID string, tokenDelta int, costDelta float64) error {
	query := `UPDATE conversations
		SET message_count = message_count + 1,
		    total_tokens = total_tokens + ?,
		    estimated_cost = estimated_cost + ?,
		    updated_at = ?
		WHERE id = ? AND assistant_id = ?`
	_, err := db.ExecContext(ctx, query, tokenDelta, costDelta, time.Now().UTC(), conversationID, assistantID)
	return err
}

const messageColumns = `id, conversation_id, role, content, token_usage, tool_use_id, tool_name, tool_input, tool_result, created_at`

// CreateMessage appends a message to a conversation.
func CreateMessage(ctx context.Context, db Execer, msg *engine.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var tokenUsage *string
	if msg.TokenUsage != nil {
		var err error
		tokenUsage, err = marshalColumn(msg.TokenUsage)
		if err != nil {
			return err
		}
	}
	var toolInput, toolResult *string
	if !msg.ToolInput.IsNull() {
		data, err := msg.ToolInput.MarshalJSON()
		if err != nil {
			return err
		}
		s := string(data)
		toolInput = &s
	}
	if !msg.ToolResult.IsNull() {
		data, err := msg.ToolResult.MarshalJSON()
		if err != nil {
			return err
		}
		s := string(data)
		toolResult = &s
	}

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, tokenUsage,
		msg.ToolUseID, msg.ToolName, toolInput, toolResult, msg.CreatedAt)
	return err
}

// GetMessagesByConversationID returns a conversation's messages ordered
// oldest first.
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]*engine.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at, id`
	var rows []messageRow
	if err := sqlscan.Select(ctx, db, &rows, query, conversationID); err != nil {
		return nil, err
	}
	out := make([]*engine.Message, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// ConversationStore adapts the conversation queries to the engine's
// store contract.
type ConversationStore struct {
	db *DB
}

var _ engine.ConversationStore = (*ConversationStore)(nil)

func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) Get(ctx context.Context, assistantID, conversationID string) (*engine.Conversation, error) {
	conv, err := GetConversation(ctx, s.db.DB(), assistantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, engine.ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationStore) Create(ctx context.Context, conv *engine.Conversation) error {
	return CreateConversation(ctx, s.db.DB(), conv)
}

func (s *ConversationStore) ListByAssistant(ctx context.Context, assistantID string, limit int) ([]*engine.Conversation, error) {
	return ListConversationsByAssistant(ctx, s.db.DB(), assistantID, limit)
}

func (s *ConversationStore) AddMessage(ctx context.Context, msg *engine.Message) error {
	return CreateMessage(ctx, s.db.DB(), msg)
}

func (s *ConversationStore) GetMessages(ctx context.Context, conversationID string) ([]*engine.Message, error) {
	return GetMessagesByConversationID(ctx, s.db.DB(), conversationID)
}

func (s *ConversationStore) UpdateStats(ctx context.Context, assistantID, conversationID string, tokenDelta int, costDelta float64) error {
	return UpdateConversationStats(ctx, s.db.DB(), assistantID, conversationID, tokenDelta, costDelta)
}
