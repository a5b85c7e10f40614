// Package aichat defines the provider-neutral chat types exchanged with a
// conversational model: messages made of content blocks, tool
// specifications, and the request/response shape of a single model call.
package aichat

import (
	"context"
	"strings"

	"github.com/wirebird/wirebird/src/jsonval"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason reports why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ToolResultStatus marks whether a tool invocation succeeded.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ToolUseBlock is a model request to invoke a named tool.
type ToolUseBlock struct {
	ToolUseID string
	Name      string
	Input     jsonval.Value
}

// ToolResultBlock carries the outcome of a tool invocation back to the
// model, matched to the request by ToolUseID.
type ToolResultBlock struct {
	ToolUseID string
	Content   []jsonval.Value
	Status    ToolResultStatus
}

// ContentBlock is one unit of message content. Exactly one field is set.
type ContentBlock struct {
	Text       *string
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: &text}
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// UserText builds a user message holding one text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// AssistantText builds an assistant message holding one text block.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// TextContent joins the text blocks of a message, skipping tool blocks.
func TextContent(msg Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Text != nil && *block.Text != "" {
			parts = append(parts, *block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses extracts the tool-use blocks of a message in order.
func ToolUses(msg Message) []ToolUseBlock {
	var uses []ToolUseBlock
	for _, block := range msg.Content {
		if block.ToolUse != nil {
			uses = append(uses, *block.ToolUse)
		}
	}
	return uses
}

// ToolSpec describes one tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema jsonval.Value
}

// Usage reports token consumption of one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates usage across calls.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// ConverseRequest is one call to a conversational model. Temperature and
// TopP are ignored when zero.
type ConverseRequest struct {
	ModelID     string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ConverseResponse is the model's reply to a ConverseRequest.
type ConverseResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}

// ModelClient is the minimal surface the orchestration loop needs from a
// model provider.
type ModelClient interface {
	Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error)
}
