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

const promptColumns = `id, assistant_id, name, content, version, variables, is_active, created_at, updated_at`

// GetActivePromptForAssistant returns the assistant's most recently
// updated active prompt, or nil when it has none.
func GetActivePromptForAssistant(ctx context.Context, db sqlscan.Querier, assistantID string) (*engine.Prompt, error) {
	query := `SELECT ` + promptColumns + ` FROM prompts WHERE assistant_id = ? AND is_active = 1 ORDER BY updated_at DESC LIMIT 1`
	var row promptRow
	err := sqlscan.Get(ctx, db, &row, query, assistantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No active prompt
		}
		return nil, err
	}
	return row.toDomain()
}

// CreatePrompt inserts a new prompt version.
func CreatePrompt(ctx context.Context, db Execer, prompt *engine.Prompt) error {
	if prompt.PromptID == "" {
		prompt.PromptID = uuid.New().String()
	}
	if prompt.Version == 0 {
		prompt.Version = 1
	}
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = time.Now().UTC()
	}
	if prompt.UpdatedAt.IsZero() {
		prompt.UpdatedAt = prompt.CreatedAt
	}

	var variables *string
	if len(prompt.Variables) > 0 {
		var err error
		variables, err = marshalColumn(prompt.Variables)
		if err != nil {
			return err
		}
	}

	query := `INSERT INTO prompts (` + promptColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		prompt.PromptID, prompt.AssistantID, prompt.Name, prompt.Content,
		prompt.Version, variables, prompt.IsActive, prompt.CreatedAt, prompt.UpdatedAt)
	return err
}

// PromptStore adapts prompt queries to the engine's store contract.
type PromptStore struct {
	db *DB
}

var _ engine.PromptStore = (*PromptStore)(nil)

func NewPromptStore(db *DB) *PromptStore {
	return &PromptStore{db: db}
}

func (s *PromptStore) GetActiveForAssistant(ctx context.Context, assistantID string) (*engine.Prompt, error) {
	return GetActivePromptForAssistant(ctx, s.db.DB(), assistantID)
}

func (s *PromptStore) Create(ctx context.Context, prompt *engine.Prompt) error {
	return CreatePrompt(ctx, s.db.DB(), prompt)
}
