package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/engine"
	"github.com/wirebird/wirebird/src/jsonval"
)

// Row types mirror table shapes. Structured fields live in JSON text
// columns and are converted at the boundary.

type conversationRow struct {
	ID            string    `db:"id"`
	AssistantID   string    `db:"assistant_id"`
	PhoneNumber   string    `db:"phone_number"`
	Channel       string    `db:"channel"`
	Status        string    `db:"status"`
	MessageCount  int       `db:"message_count"`
	TotalTokens   int       `db:"total_tokens"`
	EstimatedCost float64   `db:"estimated_cost"`
	SessionVars   *string   `db:"session_vars"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type messageRow struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	TokenUsage     *string   `db:"token_usage"`
	ToolUseID      string    `db:"tool_use_id"`
	ToolName       string    `db:"tool_name"`
	ToolInput      *string   `db:"tool_input"`
	ToolResult     *string   `db:"tool_result"`
	CreatedAt      time.Time `db:"created_at"`
}

type assistantRow struct {
	ID                   string    `db:"id"`
	TenantID             string    `db:"tenant_id"`
	Name                 string    `db:"name"`
	Description          string    `db:"description"`
	SystemPrompt         string    `db:"system_prompt"`
	ModelID              string    `db:"model_id"`
	InferenceConfig      *string   `db:"inference_config"`
	KnowledgeBaseEnabled bool      `db:"knowledge_base_enabled"`
	KnowledgeBaseID      string    `db:"knowledge_base_id"`
	Status               string    `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

type promptRow struct {
	ID          string    `db:"id"`
	AssistantID string    `db:"assistant_id"`
	Name        string    `db:"name"`
	Content     string    `db:"content"`
	Version     int       `db:"version"`
	Variables   *string   `db:"variables"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type connectorRow struct {
	ID                      string     `db:"id"`
	TenantID                string     `db:"tenant_id"`
	AssistantID             string     `db:"assistant_id"`
	Name                    string     `db:"name"`
	Description             string     `db:"description"`
	Type                    string     `db:"type"`
	BaseURL                 string     `db:"base_url"`
	AuthType                string     `db:"auth_type"`
	AuthConfig              *string    `db:"auth_config"`
	Tools                   *string    `db:"tools"`
	TriggerType             string     `db:"trigger_type"`
	TriggerConfig           *string    `db:"trigger_config"`
	MaxCallsPerConversation int        `db:"max_calls_per_conversation"`
	TimeoutMs               int        `db:"timeout_ms"`
	CacheTTLSeconds         int        `db:"cache_ttl_seconds"`
	RetryConfig             *string    `db:"retry_config"`
	Enabled                 bool       `db:"enabled"`
	LastTestedAt            *time.Time `db:"last_tested_at"`
	LastTestResult          string     `db:"last_test_result"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

func marshalColumn(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalColumn(col *string, dest interface{}) error {
	if col == nil || *col == "" {
		return nil
	}
	return json.Unmarshal([]byte(*col), dest)
}

func (r *conversationRow) toDomain() (*engine.Conversation, error) {
	conv := &engine.Conversation{
		ConversationID: r.ID,
		AssistantID:    r.AssistantID,
		PhoneNumber:    r.PhoneNumber,
		Channel:        engine.Channel(r.Channel),
		Status:         engine.ConversationStatus(r.Status),
		MessageCount:   r.MessageCount,
		TotalTokens:    r.TotalTokens,
		EstimatedCost:  r.EstimatedCost,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := unmarshalColumn(r.SessionVars, &conv.SessionVars); err != nil {
		return nil, fmt.Errorf("decode session vars: %w", err)
	}
	return conv, nil
}

func (r *messageRow) toDomain() (*engine.Message, error) {
	msg := &engine.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           engine.MessageRole(r.Role),
		Content:        r.Content,
		ToolUseID:      r.ToolUseID,
		ToolName:       r.ToolName,
		CreatedAt:      r.CreatedAt,
	}
	if err := unmarshalColumn(r.TokenUsage, &msg.TokenUsage); err != nil {
		return nil, fmt.Errorf("decode token usage: %w", err)
	}
	if r.ToolInput != nil && *r.ToolInput != "" {
		v, err := jsonval.Parse([]byte(*r.ToolInput))
		if err != nil {
			return nil, fmt.Errorf("decode tool input: %w", err)
		}
		msg.ToolInput = v
	}
	if r.ToolResult != nil && *r.ToolResult != "" {
		v, err := jsonval.Parse([]byte(*r.ToolResult))
		if err != nil {
			return nil, fmt.Errorf("decode tool result: %w", err)
		}
		msg.ToolResult = v
	}
	return msg, nil
}

func (r *assistantRow) toDomain() (*engine.Assistant, error) {
	assistant := &engine.Assistant{
		AssistantID:          r.ID,
		TenantID:             r.TenantID,
		Name:                 r.Name,
		Description:          r.Description,
		SystemPrompt:         r.SystemPrompt,
		ModelID:              r.ModelID,
		KnowledgeBaseEnabled: r.KnowledgeBaseEnabled,
		KnowledgeBaseID:      r.KnowledgeBaseID,
		Status:               engine.AssistantStatus(r.Status),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if err := unmarshalColumn(r.InferenceConfig, &assistant.InferenceConfig); err != nil {
		return nil, fmt.Errorf("decode inference config: %w", err)
	}
	return assistant, nil
}

func (r *promptRow) toDomain() (*engine.Prompt, error) {
	prompt := &engine.Prompt{
		PromptID:    r.ID,
		AssistantID: r.AssistantID,
		Name:        r.Name,
		Content:     r.Content,
		Version:     r.Version,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := unmarshalColumn(r.Variables, &prompt.Variables); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return prompt, nil
}

func (r *connectorRow) toDomain() (*connector.DataConnector, error) {
	conn := &connector.DataConnector{
		ConnectorID:             r.ID,
		TenantID:                r.TenantID,
		AssistantID:             r.AssistantID,
		Name:                    r.Name,
		Description:             r.Description,
		Type:                    connector.Type(r.Type),
		BaseURL:                 r.BaseURL,
		AuthType:                connector.AuthType(r.AuthType),
		Trigger:                 connector.Trigger(r.TriggerType),
		MaxCallsPerConversation: r.MaxCallsPerConversation,
		TimeoutMs:               r.TimeoutMs,
		CacheTTLSeconds:         r.CacheTTLSeconds,
		Enabled:                 r.Enabled,
		LastTestedAt:            r.LastTestedAt,
		LastTestResult:          connector.TestResult(r.LastTestResult),
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if err := unmarshalColumn(r.AuthConfig, &conn.AuthConfig); err != nil {
		return nil, fmt.Errorf("decode auth config: %w", err)
	}
	if err := unmarshalColumn(r.Tools, &conn.Tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	if err := unmarshalColumn(r.TriggerConfig, &conn.TriggerConfig); err != nil {
		return nil, fmt.Errorf("decode trigger config: %w", err)
	}
	if err := unmarshalColumn(r.RetryConfig, &conn.RetryConfig); err != nil {
		return nil, fmt.Errorf("decode retry config: %w", err)
	}
	return conn, nil
}
