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

const assistantColumns = `id, tenant_id, name, description, system_prompt, model_id, inference_config, knowledge_base_enabled, knowledge_base_id, status, created_at, updated_at`

// GetAssistantByID retrieves an assistant by its ID.
func GetAssistantByID(ctx context.Context, db sqlscan.Querier, assistantID string) (*engine.Assistant, error) {
	query := `SELECT ` + assistantColumns + ` FROM assistants WHERE id = ?`
	var row assistantRow
	err := sqlscan.Get(ctx, db, &row, query, assistantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return row.toDomain()
}

// CreateAssistant inserts a new assistant.
func CreateAssistant(ctx context.Context, db Execer, assistant *engine.Assistant) error {
	if assistant.AssistantID == "" {
		assistant.AssistantID = uuid.New().String()
	}
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = time.Now().UTC()
	}
	if assistant.UpdatedAt.IsZero() {
		assistant.UpdatedAt = assistant.CreatedAt
	}
	if assistant.Status == "" {
		assistant.Status = engine.AssistantDraft
	}

	var inference *string
	if assistant.InferenceConfig != nil {
		var err error
		inference, err = marshalColumn(assistant.InferenceConfig)
		if err != nil {
			return err
		}
	}

	query := `INSERT INTO assistants (` + assistantColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		assistant.AssistantID, assistant.TenantID, assistant.Name, assistant.Description,
		assistant.SystemPrompt, assistant.ModelID, inference,
		assistant.KnowledgeBaseEnabled, assistant.KnowledgeBaseID, string(assistant.Status),
		assistant.CreatedAt, assistant.UpdatedAt)
	return err
}

// AssistantStore adapts assistant queries to the engine's store contract.
type AssistantStore struct {
	db *DB
}

var _ engine.AssistantStore = (*AssistantStore)(nil)

func NewAssistantStore(db *DB) *AssistantStore {
	return &AssistantStore{db: db}
}

func (s *AssistantStore) GetByID(ctx context.Context, assistantID string) (*engine.Assistant, error) {
	assistant, err := GetAssistantByID(ctx, s.db.DB(), assistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, engine.ErrAssistantNotFound
	}
	return assistant, nil
}

func (s *AssistantStore) Create(ctx context.Context, assistant *engine.Assistant) error {
	return CreateAssistant(ctx, s.db.DB(), assistant)
}
