package engine

import "errors"

var (
	// ErrConversationNotFound reports a conversation absent from the store.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrAssistantNotFound reports an assistant absent from the store.
	ErrAssistantNotFound = errors.New("assistant not found")
	// ErrConnectorNotFound reports a connector absent from the store.
	ErrConnectorNotFound = errors.New("connector not found")
	// ErrPromptNotFound reports a prompt absent from the store.
	ErrPromptNotFound = errors.New("prompt not found")
)
