package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/costs"
	"github.com/wirebird/wirebird/src/engine"
	"github.com/wirebird/wirebird/src/jsonval"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening must not reapply migrations
	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestConversationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()

	conv := engine.NewConversation("asst-1", engine.ChannelDirectMessage, "+15550100", map[string]string{"customerName": "Ada"})
	require.NoError(t, store.Create(ctx, conv))

	got, err := store.Get(ctx, "asst-1", conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, engine.ChannelDirectMessage, got.Channel)
	assert.Equal(t, "+15550100", got.PhoneNumber)
	assert.Equal(t, map[string]string{"customerName": "Ada"}, got.SessionVars)
	assert.Equal(t, engine.ConversationActive, got.Status)
}

func TestConversationNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewConversationStore(db)

	_, err := store.Get(context.Background(), "asst-1", "missing")
	assert.ErrorIs(t, err, engine.ErrConversationNotFound)

	// a conversation is invisible under the wrong assistant
	conv := engine.NewConversation("asst-1", engine.ChannelSandboxTest, "", nil)
	require.NoError(t, store.Create(context.Background(), conv))
	_, err = store.Get(context.Background(), "asst-2", conv.ConversationID)
	assert.ErrorIs(t, err, engine.ErrConversationNotFound)
}

func TestMessagesOrderedAndToolLinkage(t *testing.T) {
	db := openTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	toolInput, err := jsonval.Parse([]byte(`{"orderId":"o1"}`))
	require.NoError(t, err)

	msgs := []*engine.Message{
		{ConversationID: "conv-1", Role: engine.MessageRoleUser, Content: "first", CreatedAt: base},
		{
			ConversationID: "conv-1",
			Role:           engine.MessageRoleAssistant,
			Content:        "second",
			ToolUseID:      "use-1",
			ToolName:       "get_order",
			ToolInput:      toolInput,
			TokenUsage:     &engine.TokenUsage{InputTokens: 9, OutputTokens: 4},
			CreatedAt:      base.Add(time.Second),
		},
	}
	for _, msg := range msgs {
		require.NoError(t, store.AddMessage(ctx, msg))
	}

	got, err := store.GetMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "get_order", got[1].ToolName)
	assert.Equal(t, &engine.TokenUsage{InputTokens: 9, OutputTokens: 4}, got[1].TokenUsage)
	orderID, _ := got[1].ToolInput.Field("orderId")
	assert.Equal(t, "o1", orderID.Str())
}

func TestUpdateStats(t *testing.T) {
	db := openTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()

	conv := engine.NewConversation("asst-1", engine.ChannelSandboxTest, "", nil)
	require.NoError(t, store.Create(ctx, conv))

	require.NoError(t, store.UpdateStats(ctx, "asst-1", conv.ConversationID, 15, 0))
	require.NoError(t, store.UpdateStats(ctx, "asst-1", conv.ConversationID, 10, 0.25))

	got, err := store.Get(ctx, "asst-1", conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	assert.Equal(t, 25, got.TotalTokens)
	assert.InDelta(t, 0.25, got.EstimatedCost, 1e-9)
}

func TestAssistantRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewAssistantStore(db)
	ctx := context.Background()

	assistant := &engine.Assistant{
		TenantID:             "tenant-1",
		Name:                 "Support Bot",
		SystemPrompt:         "You help customers.",
		ModelID:              "anthropic.claude-3-haiku-20240307-v1:0",
		InferenceConfig:      &engine.InferenceConfig{MaxTokens: 2048, Temperature: 0.5, TopP: 0.8},
		KnowledgeBaseEnabled: true,
		KnowledgeBaseID:      "kb-1",
		Status:               engine.AssistantActive,
	}
	require.NoError(t, store.Create(ctx, assistant))

	got, err := store.GetByID(ctx, assistant.AssistantID)
	require.NoError(t, err)
	assert.Equal(t, "Support Bot", got.Name)
	require.NotNil(t, got.InferenceConfig)
	assert.Equal(t, 2048, got.InferenceConfig.MaxTokens)
	assert.True(t, got.KnowledgeBaseEnabled)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrAssistantNotFound)
}

func TestActivePromptSelection(t *testing.T) {
	db := openTestDB(t)
	store := NewPromptStore(db)
	ctx := context.Background()

	got, err := store.GetActiveForAssistant(ctx, "asst-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Create(ctx, &engine.Prompt{
		AssistantID: "asst-1", Name: "v1", Content: "old", Version: 1, IsActive: false,
	}))
	require.NoError(t, store.Create(ctx, &engine.Prompt{
		AssistantID: "asst-1", Name: "v2", Content: "Greet {{customerName}}.", Version: 2, IsActive: true,
		Variables: []string{"customerName"},
	}))

	got, err = store.GetActiveForAssistant(ctx, "asst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Greet {{customerName}}.", got.Content)
	assert.Equal(t, []string{"customerName"}, got.Variables)
}

func TestActivePromptSelectionMostRecentlyUpdated(t *testing.T) {
	db := openTestDB(t)
	store := NewPromptStore(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// a higher version that went stale an hour before the lower one was
	// last touched
	require.NoError(t, store.Create(ctx, &engine.Prompt{
		AssistantID: "asst-1", Name: "v2", Content: "stale", Version: 2, IsActive: true,
		CreatedAt: base.Add(-2 * time.Hour), UpdatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, store.Create(ctx, &engine.Prompt{
		AssistantID: "asst-1", Name: "v1", Content: "fresh", Version: 1, IsActive: true,
		CreatedAt: base.Add(-3 * time.Hour), UpdatedAt: base,
	}))

	got, err := store.GetActiveForAssistant(ctx, "asst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fresh", got.Content)
	assert.Equal(t, 1, got.Version)
}

func TestConnectorRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewConnectorStore(db)
	ctx := context.Background()

	schema, err := jsonval.Parse([]byte(`{"type":"object","properties":{"orderId":{"type":"string"}}}`))
	require.NoError(t, err)
	body, err := jsonval.Parse([]byte(`{"q":"{{orderId}}"}`))
	require.NoError(t, err)

	conn := &connector.DataConnector{
		TenantID:    "tenant-1",
		AssistantID: "asst-1",
		Name:        "orders",
		Type:        connector.TypeRESTAPI,
		BaseURL:     "https://api.example.com",
		AuthType:    connector.AuthBearer,
		AuthConfig:  connector.AuthConfig{BearerToken: "{{secret:token}}"},
		Tools: []connector.Tool{{
			Name:        "get_order",
			Description: "fetch an order",
			Method:      "POST",
			Path:        "/orders/search",
			InputSchema: schema,
			RequestMapping: connector.RequestMapping{
				BodyTemplate: body,
			},
			ResponseMapping: &connector.ResponseMapping{ExtractPath: "$.data", MaxResponseSize: 4096},
		}},
		Trigger:   connector.TriggerOnDemand,
		TimeoutMs: 10000,
		Enabled:   true,
	}
	require.NoError(t, store.Create(ctx, conn))

	got, err := store.Get(ctx, "asst-1", conn.ConnectorID)
	require.NoError(t, err)
	assert.Equal(t, connector.AuthBearer, got.AuthType)
	assert.Equal(t, "{{secret:token}}", got.AuthConfig.BearerToken)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "get_order", got.Tools[0].Name)
	assert.Equal(t, "$.data", got.Tools[0].ResponseMapping.ExtractPath)
	q, _ := got.Tools[0].RequestMapping.BodyTemplate.Field("q")
	assert.Equal(t, "{{orderId}}", q.Str())

	enabled, err := store.GetEnabledByAssistant(ctx, "asst-1")
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	_, err = store.Get(ctx, "asst-1", "missing")
	assert.ErrorIs(t, err, engine.ErrConnectorNotFound)
}

func TestConnectorDisabledExcluded(t *testing.T) {
	db := openTestDB(t)
	store := NewConnectorStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &connector.DataConnector{
		AssistantID: "asst-1", Name: "off", BaseURL: "https://x", Enabled: false,
	}))

	enabled, err := store.GetEnabledByAssistant(ctx, "asst-1")
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestConnectorTestResult(t *testing.T) {
	db := openTestDB(t)
	store := NewConnectorStore(db)
	ctx := context.Background()

	conn := &connector.DataConnector{AssistantID: "asst-1", Name: "c", BaseURL: "https://x", Enabled: true}
	require.NoError(t, store.Create(ctx, conn))

	require.NoError(t, store.UpdateTestResult(ctx, "asst-1", conn.ConnectorID, connector.TestSuccess))

	got, err := store.Get(ctx, "asst-1", conn.ConnectorID)
	require.NoError(t, err)
	assert.Equal(t, connector.TestSuccess, got.LastTestResult)
	assert.NotNil(t, got.LastTestedAt)
}

func TestTenantSecrets(t *testing.T) {
	db := openTestDB(t)
	store := NewConnectorStore(db)
	ctx := context.Background()

	require.NoError(t, SetTenantSecret(ctx, db.DB(), "tenant-1", "apiKey", "old"))
	require.NoError(t, SetTenantSecret(ctx, db.DB(), "tenant-1", "apiKey", "new"))
	require.NoError(t, SetTenantSecret(ctx, db.DB(), "tenant-1", "token", "t"))
	require.NoError(t, SetTenantSecret(ctx, db.DB(), "tenant-2", "other", "x"))

	secrets, err := store.GetSecrets(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"apiKey": "new", "token": "t"}, secrets)
}

func TestCostEvents(t *testing.T) {
	db := openTestDB(t)
	store := NewCostStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.InsertCostEvent(ctx, &costs.Event{
		ConversationID: "conv-1",
		TenantID:       "tenant-1",
		AssistantID:    "asst-1",
		RequestType:    costs.RequestConverse,
		ModelID:        "m",
		InputTokens:    10,
		OutputTokens:   5,
		LatencyMs:      120,
		EstimatedCost:  0.001,
		Timestamp:      base,
	}))
	require.NoError(t, store.InsertCostEvent(ctx, &costs.Event{
		ConversationID: "conv-1",
		RequestType:    costs.RequestConnectorCall,
		Timestamp:      base.Add(time.Second),
	}))

	events, err := store.ListByConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, costs.RequestConverse, events[0].RequestType)
	assert.Equal(t, 10, events[0].InputTokens)
	assert.NotEmpty(t, events[0].ID)
}
