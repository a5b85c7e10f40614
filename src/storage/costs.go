package storage

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/wirebird/wirebird/src/costs"
)

const costEventColumns = `id, conversation_id, tenant_id, assistant_id, request_type, model_id, input_tokens, output_tokens, latency_ms, estimated_cost, timestamp`

type costEventRow struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	TenantID       string    `db:"tenant_id"`
	AssistantID    string    `db:"assistant_id"`
	RequestType    string    `db:"request_type"`
	ModelID        string    `db:"model_id"`
	InputTokens    int       `db:"input_tokens"`
	OutputTokens   int       `db:"output_tokens"`
	LatencyMs      int64     `db:"latency_ms"`
	EstimatedCost  float64   `db:"estimated_cost"`
	Timestamp      time.Time `db:"timestamp"`
}

// CreateCostEvent appends one immutable cost event.
func CreateCostEvent(ctx context.Context, db Execer, event *costs.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `INSERT INTO cost_events (` + costEventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		event.ID, event.ConversationID, event.TenantID, event.AssistantID,
		string(event.RequestType), event.ModelID, event.InputTokens, event.OutputTokens,
		event.LatencyMs, event.EstimatedCost, event.Timestamp)
	return err
}

// ListCostEventsByConversation returns a conversation's cost events in
// time order.
func ListCostEventsByConversation(ctx context.Context, db sqlscan.Querier, conversationID string) ([]*costs.Event, error) {
	query := `SELECT ` + costEventColumns + ` FROM cost_events WHERE conversation_id = ? ORDER BY timestamp, id`
	var rows []costEventRow
	if err := sqlscan.Select(ctx, db, &rows, query, conversationID); err != nil {
		return nil, err
	}
	out := make([]*costs.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, &costs.Event{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			TenantID:       row.TenantID,
			AssistantID:    row.AssistantID,
			RequestType:    costs.RequestType(row.RequestType),
			ModelID:        row.ModelID,
			InputTokens:    row.InputTokens,
			OutputTokens:   row.OutputTokens,
			LatencyMs:      row.LatencyMs,
			EstimatedCost:  row.EstimatedCost,
			Timestamp:      row.Timestamp,
		})
	}
	return out, nil
}

// CostStore adapts cost event writes to the tracker's store contract.
type CostStore struct {
	db *DB
}

var _ costs.Store = (*CostStore)(nil)

func NewCostStore(db *DB) *CostStore {
	return &CostStore{db: db}
}

func (s *CostStore) InsertCostEvent(ctx context.Context, event *costs.Event) error {
	return CreateCostEvent(ctx, s.db.DB(), event)
}

func (s *CostStore) ListByConversation(ctx context.Context, conversationID string) ([]*costs.Event, error) {
	return ListCostEventsByConversation(ctx, s.db.DB(), conversationID)
}
