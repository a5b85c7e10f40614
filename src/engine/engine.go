package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wirebird/wirebird/src/aichat"
	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/costs"
	"github.com/wirebird/wirebird/src/rag"
	"github.com/wirebird/wirebird/src/template"
)

// maxToolRounds caps how many tool_use rounds one turn may perform. The
// limit check happens after incrementing the round counter, so the turn
// performs at most maxToolRounds+1 model calls before bailing out.
const maxToolRounds = 5

const (
	defaultModelID      = "anthropic.claude-3-haiku-20240307-v1:0"
	defaultSystemPrompt = "You are a helpful assistant."
	apologyReply        = "I apologize, but I was unable to complete the request. Please try again."
)

var defaultInferenceConfig = InferenceConfig{MaxTokens: 4096, Temperature: 0.7, TopP: 0.9}

// ToolExecutor runs one model-requested tool call. It never fails: every
// fault becomes an error-status result.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, use aichat.ToolUseBlock, connectors []connector.DataConnector, sctx connector.SessionContext) aichat.ToolResultBlock
}

// Augmenter folds retrieved documents into a system prompt.
type Augmenter interface {
	RetrieveAndBuildContext(ctx context.Context, query, systemPrompt, knowledgeBaseID string, opts rag.Options) (rag.Context, error)
}

// CostTracker appends usage telemetry.
type CostTracker interface {
	Track(ctx context.Context, event costs.Event)
}

// Engine orchestrates conversation turns.
type Engine struct {
	conversations ConversationStore
	assistants    AssistantStore
	prompts       PromptStore
	connectors    ConnectorStore
	model         aichat.ModelClient
	augmenter     Augmenter
	tools         ToolExecutor
	tracker       CostTracker
	logger        *slog.Logger

	defaultModel     string
	defaultInference InferenceConfig
}

// Deps bundles everything an Engine needs.
type Deps struct {
	Conversations ConversationStore
	Assistants    AssistantStore
	Prompts       PromptStore
	Connectors    ConnectorStore
	Model         aichat.ModelClient
	Augmenter     Augmenter
	Tools         ToolExecutor
	Tracker       CostTracker
	Logger        *slog.Logger

	// DefaultModelID and DefaultInference override the built-in
	// fallbacks used when neither the request nor the assistant sets
	// them.
	DefaultModelID   string
	DefaultInference *InferenceConfig
}

// New builds an Engine. A nil logger falls back to slog.Default.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultModel := deps.DefaultModelID
	if defaultModel == "" {
		defaultModel = defaultModelID
	}
	defaultInference := defaultInferenceConfig
	if deps.DefaultInference != nil {
		defaultInference = *deps.DefaultInference
	}
	return &Engine{
		conversations: deps.Conversations,
		assistants:    deps.Assistants,
		prompts:       deps.Prompts,
		connectors:    deps.Connectors,
		model:         deps.Model,
		augmenter:     deps.Augmenter,
		tools:         deps.Tools,
		tracker:       deps.Tracker,
		logger:        logger,

		defaultModel:     defaultModel,
		defaultInference: defaultInference,
	}
}

// ProcessMessageInput is one inbound user message targeting a
// conversation.
type ProcessMessageInput struct {
	ConversationID  string
	Message         string
	AssistantID     string
	TenantID        string
	PromptVariables map[string]string
	KnowledgeBaseID string
	ModelID         string
	InferenceConfig *InferenceConfig
}

// UsageSummary reports the tokens and tool rounds one turn consumed.
type UsageSummary struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	ToolCalls    int `json:"toolCalls"`
}

// ProcessMessageOutput is the assistant's reply to one inbound message.
type ProcessMessageOutput struct {
	ConversationID string       `json:"conversationId"`
	Response       string       `json:"response"`
	Usage          UsageSummary `json:"usage"`
}

// ProcessMessage turns one inbound message into one assistant reply. Not
// found conditions surface as ErrConversationNotFound or
// ErrAssistantNotFound; a model failure aborts the turn with no partial
// assistant message persisted.
func (e *Engine) ProcessMessage(ctx context.Context, input ProcessMessageInput) (*ProcessMessageOutput, error) {
	conv, err := e.conversations.Get(ctx, input.AssistantID, input.ConversationID)
	if err != nil {
		return nil, err
	}

	if err := e.conversations.AddMessage(ctx, &Message{
		ID:             uuid.NewString(),
		ConversationID: input.ConversationID,
		Role:           MessageRoleUser,
		Content:        input.Message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	history, err := e.conversations.GetMessages(ctx, input.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	messages := make([]aichat.Message, 0, len(history))
	for _, msg := range history {
		role := aichat.RoleAssistant
		if msg.Role == MessageRoleUser {
			role = aichat.RoleUser
		}
		messages = append(messages, aichat.Message{
			Role:    role,
			Content: []aichat.ContentBlock{aichat.TextBlock(msg.Content)},
		})
	}

	assistant, err := e.assistants.GetByID(ctx, input.AssistantID)
	if err != nil {
		return nil, err
	}

	modelID := input.ModelID
	if modelID == "" {
		modelID = assistant.ModelID
	}
	if modelID == "" {
		modelID = e.defaultModel
	}

	inference := e.defaultInference
	if input.InferenceConfig != nil {
		inference = *input.InferenceConfig
	} else if assistant.InferenceConfig != nil {
		inference = *assistant.InferenceConfig
	}

	templateVars := map[string]string{}
	for k, v := range conv.SessionVars {
		templateVars[k] = v
	}
	for k, v := range input.PromptVariables {
		templateVars[k] = v
	}

	systemPrompt := assistant.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	activePrompt, err := e.prompts.GetActiveForAssistant(ctx, input.AssistantID)
	if err != nil {
		return nil, fmt.Errorf("load active prompt: %w", err)
	}
	if activePrompt != nil {
		systemPrompt = systemPrompt + "\n\n" + template.Resolve(activePrompt.Content, templateVars)
	}

	conns, err := e.connectors.GetEnabledByAssistant(ctx, input.AssistantID)
	if err != nil {
		return nil, fmt.Errorf("load connectors: %w", err)
	}
	secrets := map[string]string{}
	if input.TenantID != "" {
		secrets, err = e.connectors.GetSecrets(ctx, input.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load secrets: %w", err)
		}
	}
	tools := connector.ToolSpecs(conns)

	knowledgeBaseID := input.KnowledgeBaseID
	if knowledgeBaseID == "" && assistant.KnowledgeBaseEnabled {
		knowledgeBaseID = assistant.KnowledgeBaseID
	}
	if knowledgeBaseID != "" {
		rctx, err := e.augmenter.RetrieveAndBuildContext(ctx, input.Message, systemPrompt, knowledgeBaseID, rag.Options{})
		if err != nil {
			return nil, fmt.Errorf("knowledge base retrieval: %w", err)
		}
		systemPrompt = rctx.ContextPrompt
		e.tracker.Track(ctx, costs.Event{
			ConversationID: input.ConversationID,
			TenantID:       input.TenantID,
			AssistantID:    input.AssistantID,
			RequestType:    costs.RequestKBRetrieve,
			ModelID:        modelID,
		})
	}

	return e.runLoop(ctx, loopState{
		input:        input,
		conversation: conv,
		modelID:      modelID,
		inference:    inference,
		systemPrompt: systemPrompt,
		messages:     messages,
		tools:        tools,
		connectors:   conns,
		secrets:      secrets,
	})
}

type loopState struct {
	input        ProcessMessageInput
	conversation *Conversation
	modelID      string
	inference    InferenceConfig
	systemPrompt string
	messages     []aichat.Message
	tools        []aichat.ToolSpec
	connectors   []connector.DataConnector
	secrets      map[string]string
}

func (e *Engine) runLoop(ctx context.Context, state loopState) (*ProcessMessageOutput, error) {
	messages := state.messages
	toolCallCount := 0
	var totalUsage aichat.Usage

	for {
		start := time.Now()
		resp, err := e.model.Converse(ctx, &aichat.ConverseRequest{
			ModelID:     state.modelID,
			System:      state.systemPrompt,
			Messages:    messages,
			Tools:       state.tools,
			MaxTokens:   state.inference.MaxTokens,
			Temperature: state.inference.Temperature,
			TopP:        state.inference.TopP,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		totalUsage = totalUsage.Add(resp.Usage)
		e.tracker.Track(ctx, costs.Event{
			ConversationID: state.input.ConversationID,
			TenantID:       state.input.TenantID,
			AssistantID:    state.input.AssistantID,
			RequestType:    costs.RequestConverse,
			ModelID:        state.modelID,
			InputTokens:    resp.Usage.InputTokens,
			OutputTokens:   resp.Usage.OutputTokens,
			LatencyMs:      time.Since(start).Milliseconds(),
		})

		if resp.StopReason != aichat.StopToolUse {
			return e.finishTurn(ctx, state, resp.Message, totalUsage, toolCallCount)
		}

		toolCallCount++
		if toolCallCount > maxToolRounds {
			e.logger.Warn("max tool call rounds exceeded",
				"conversationId", state.input.ConversationID,
				"toolCallCount", toolCallCount)
			return &ProcessMessageOutput{
				ConversationID: state.input.ConversationID,
				Response:       apologyReply,
				Usage: UsageSummary{
					InputTokens:  totalUsage.InputTokens,
					OutputTokens: totalUsage.OutputTokens,
					ToolCalls:    toolCallCount,
				},
			}, nil
		}

		uses := aichat.ToolUses(resp.Message)
		names := make([]string, len(uses))
		for i, use := range uses {
			names[i] = use.Name
		}
		e.logger.Info("tool use requested",
			"conversationId", state.input.ConversationID,
			"tools", names,
			"round", toolCallCount)

		results := e.executeTools(ctx, uses, state)

		for range results {
			e.tracker.Track(ctx, costs.Event{
				ConversationID: state.input.ConversationID,
				TenantID:       state.input.TenantID,
				AssistantID:    state.input.AssistantID,
				RequestType:    costs.RequestConnectorCall,
				ModelID:        state.modelID,
			})
		}

		resultBlocks := make([]aichat.ContentBlock, len(results))
		for i := range results {
			resultBlocks[i] = aichat.ContentBlock{ToolResult: &results[i]}
		}
		messages = append(messages, resp.Message, aichat.Message{
			Role:    aichat.RoleUser,
			Content: resultBlocks,
		})
	}
}

// executeTools fans out all tool calls of one round concurrently and
// waits for every result. A failing tool yields an error-status result
// without cancelling its siblings.
func (e *Engine) executeTools(ctx context.Context, uses []aichat.ToolUseBlock, state loopState) []aichat.ToolResultBlock {
	sctx := connector.SessionContext{
		SessionVars: state.conversation.SessionVars,
		Secrets:     state.secrets,
	}

	results := make([]aichat.ToolResultBlock, len(uses))
	var wg sync.WaitGroup
	for i, use := range uses {
		wg.Add(1)
		go func(i int, use aichat.ToolUseBlock) {
			defer wg.Done()
			results[i] = e.tools.ExecuteTool(ctx, use, state.connectors, sctx)
		}(i, use)
	}
	wg.Wait()
	return results
}

func (e *Engine) finishTurn(ctx context.Context, state loopState, reply aichat.Message, totalUsage aichat.Usage, toolCallCount int) (*ProcessMessageOutput, error) {
	text := aichat.TextContent(reply)

	if err := e.conversations.AddMessage(ctx, &Message{
		ID:             uuid.NewString(),
		ConversationID: state.input.ConversationID,
		Role:           MessageRoleAssistant,
		Content:        text,
		TokenUsage: &TokenUsage{
			InputTokens:  totalUsage.InputTokens,
			OutputTokens: totalUsage.OutputTokens,
		},
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}

	// cost delta stays zero here: spend is aggregated downstream from
	// cost events, not inline
	if err := e.conversations.UpdateStats(ctx, state.input.AssistantID, state.input.ConversationID,
		totalUsage.InputTokens+totalUsage.OutputTokens, 0); err != nil {
		return nil, fmt.Errorf("update conversation stats: %w", err)
	}

	return &ProcessMessageOutput{
		ConversationID: state.input.ConversationID,
		Response:       text,
		Usage: UsageSummary{
			InputTokens:  totalUsage.InputTokens,
			OutputTokens: totalUsage.OutputTokens,
			ToolCalls:    toolCallCount,
		},
	}, nil
}

// NewConversation builds a conversation record ready for Create.
func NewConversation(assistantID string, channel Channel, phoneNumber string, sessionVars map[string]string) *Conversation {
	now := time.Now().UTC()
	if channel == "" {
		channel = ChannelSandboxTest
	}
	return &Conversation{
		ConversationID: uuid.NewString(),
		AssistantID:    assistantID,
		PhoneNumber:    phoneNumber,
		Channel:        channel,
		Status:         ConversationActive,
		SessionVars:    sessionVars,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
