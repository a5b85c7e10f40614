package engine

import (
	"context"

	"github.com/wirebird/wirebird/src/connector"
)

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// Get returns the conversation or ErrConversationNotFound.
	Get(ctx context.Context, assistantID, conversationID string) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	ListByAssistant(ctx context.Context, assistantID string, limit int) ([]*Conversation, error)
	AddMessage(ctx context.Context, msg *Message) error
	// GetMessages returns the conversation's messages ordered oldest first.
	GetMessages(ctx context.Context, conversationID string) ([]*Message, error)
	// UpdateStats bumps message count and accumulates token and cost deltas.
	UpdateStats(ctx context.Context, assistantID, conversationID string, tokenDelta int, costDelta float64) error
}

// AssistantStore reads assistant configuration.
type AssistantStore interface {
	// GetByID returns the assistant or ErrAssistantNotFound.
	GetByID(ctx context.Context, assistantID string) (*Assistant, error)
}

// PromptStore reads versioned prompts.
type PromptStore interface {
	// GetActiveForAssistant returns the active prompt, or nil when the
	// assistant has none.
	GetActiveForAssistant(ctx context.Context, assistantID string) (*Prompt, error)
}

// ConnectorStore reads connector declarations and tenant secrets.
type ConnectorStore interface {
	GetEnabledByAssistant(ctx context.Context, assistantID string) ([]connector.DataConnector, error)
	// Get returns the connector or ErrConnectorNotFound.
	Get(ctx context.Context, assistantID, connectorID string) (*connector.DataConnector, error)
	GetSecrets(ctx context.Context, tenantID string) (map[string]string, error)
	UpdateTestResult(ctx context.Context, assistantID, connectorID string, result connector.TestResult) error
}
