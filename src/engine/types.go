// Package engine drives one conversation turn: it loads state, runs the
// model loop with retrieval and tool execution, and persists the reply.
package engine

import (
	"time"

	"github.com/wirebird/wirebird/src/jsonval"
)

// Channel identifies where a conversation takes place.
type Channel string

const (
	ChannelDirectMessage Channel = "direct-message"
	ChannelSandboxTest   Channel = "sandbox-test"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// AssistantStatus is the lifecycle state of an assistant.
type AssistantStatus string

const (
	AssistantDraft  AssistantStatus = "draft"
	AssistantActive AssistantStatus = "active"
	AssistantPaused AssistantStatus = "paused"
)

// MessageRole is the author of a stored message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// TokenUsage records the tokens consumed producing one message.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Message is an immutable turn stored on a conversation. Tool-linkage
// fields are set when the turn corresponds to a tool exchange.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Role           MessageRole   `json:"role"`
	Content        string        `json:"content"`
	ToolUseID      string        `json:"toolUseId,omitempty"`
	ToolName       string        `json:"toolName,omitempty"`
	ToolInput      jsonval.Value `json:"toolInput,omitempty"`
	ToolResult     jsonval.Value `json:"toolResult,omitempty"`
	TokenUsage     *TokenUsage   `json:"tokenUsage,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Conversation is an ongoing exchange between an end user and an
// assistant.
type Conversation struct {
	ConversationID string             `json:"conversationId"`
	AssistantID    string             `json:"assistantId"`
	PhoneNumber    string             `json:"phoneNumber,omitempty"`
	Channel        Channel            `json:"channel"`
	Status         ConversationStatus `json:"status"`
	MessageCount   int                `json:"messageCount"`
	TotalTokens    int                `json:"totalTokens"`
	EstimatedCost  float64            `json:"estimatedCost"`
	SessionVars    map[string]string  `json:"sessionVars,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// InferenceConfig tunes one model call.
type InferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

// Assistant is a tenant-owned conversational agent configuration.
type Assistant struct {
	AssistantID          string           `json:"assistantId"`
	TenantID             string           `json:"tenantId"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	SystemPrompt         string           `json:"systemPrompt"`
	ModelID              string           `json:"modelId"`
	InferenceConfig      *InferenceConfig `json:"inferenceConfig,omitempty"`
	KnowledgeBaseEnabled bool             `json:"knowledgeBaseEnabled"`
	KnowledgeBaseID      string           `json:"knowledgeBaseId,omitempty"`
	Status               AssistantStatus  `json:"status"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// Prompt is a versioned prompt layered on top of an assistant's base
// system prompt. At most one prompt is active per assistant.
type Prompt struct {
	PromptID    string    `json:"promptId"`
	AssistantID string    `json:"assistantId"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	Version     int       `json:"version"`
	Variables   []string  `json:"variables,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
