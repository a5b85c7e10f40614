package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/wirebird/src/aichat"
	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/costs"
	"github.com/wirebird/wirebird/src/jsonval"
	"github.com/wirebird/wirebird/src/rag"
)

type fakeConversations struct {
	conv        *Conversation
	messages    []*Message
	statsTokens []int
}

func (f *fakeConversations) Get(_ context.Context, assistantID, conversationID string) (*Conversation, error) {
	if f.conv == nil || f.conv.ConversationID != conversationID || f.conv.AssistantID != assistantID {
		return nil, ErrConversationNotFound
	}
	return f.conv, nil
}

func (f *fakeConversations) Create(_ context.Context, conv *Conversation) error {
	f.conv = conv
	return nil
}

func (f *fakeConversations) ListByAssistant(_ context.Context, _ string, _ int) ([]*Conversation, error) {
	return []*Conversation{f.conv}, nil
}

func (f *fakeConversations) AddMessage(_ context.Context, msg *Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConversations) GetMessages(_ context.Context, _ string) ([]*Message, error) {
	return f.messages, nil
}

func (f *fakeConversations) UpdateStats(_ context.Context, _, _ string, tokenDelta int, _ float64) error {
	f.statsTokens = append(f.statsTokens, tokenDelta)
	return nil
}

type fakeAssistants struct {
	assistant *Assistant
}

func (f *fakeAssistants) GetByID(_ context.Context, assistantID string) (*Assistant, error) {
	if f.assistant == nil || f.assistant.AssistantID != assistantID {
		return nil, ErrAssistantNotFound
	}
	return f.assistant, nil
}

type fakePrompts struct {
	active *Prompt
}

func (f *fakePrompts) GetActiveForAssistant(_ context.Context, _ string) (*Prompt, error) {
	return f.active, nil
}

type fakeConnectors struct {
	connectors []connector.DataConnector
	secrets    map[string]string
}

func (f *fakeConnectors) GetEnabledByAssistant(_ context.Context, _ string) ([]connector.DataConnector, error) {
	return f.connectors, nil
}

func (f *fakeConnectors) Get(_ context.Context, _, _ string) (*connector.DataConnector, error) {
	return nil, ErrConnectorNotFound
}

func (f *fakeConnectors) GetSecrets(_ context.Context, _ string) (map[string]string, error) {
	return f.secrets, nil
}

func (f *fakeConnectors) UpdateTestResult(_ context.Context, _, _ string, _ connector.TestResult) error {
	return nil
}

// scriptedModel returns its responses in order; the last repeats forever.
type scriptedModel struct {
	responses []*aichat.ConverseResponse
	err       error
	requests  []*aichat.ConverseRequest
	calls     int
}

func (s *scriptedModel) Converse(_ context.Context, req *aichat.ConverseRequest) (*aichat.ConverseResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

type fakeTools struct {
	mu    sync.Mutex
	calls []aichat.ToolUseBlock
	fail  map[string]bool
}

func (f *fakeTools) ExecuteTool(_ context.Context, use aichat.ToolUseBlock, _ []connector.DataConnector, _ connector.SessionContext) aichat.ToolResultBlock {
	f.mu.Lock()
	f.calls = append(f.calls, use)
	f.mu.Unlock()
	status := aichat.ToolResultSuccess
	if f.fail[use.Name] {
		status = aichat.ToolResultError
	}
	return aichat.ToolResultBlock{
		ToolUseID: use.ToolUseID,
		Content:   []jsonval.Value{jsonval.Object(nil)},
		Status:    status,
	}
}

type fakeAugmenter struct {
	called bool
	err    error
}

func (f *fakeAugmenter) RetrieveAndBuildContext(_ context.Context, query, systemPrompt, _ string, _ rag.Options) (rag.Context, error) {
	f.called = true
	if f.err != nil {
		return rag.Context{}, f.err
	}
	return rag.Context{ContextPrompt: systemPrompt + "\n\n[retrieved context]\n" + query}, nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []costs.Event
}

func (f *fakeTracker) Track(_ context.Context, event costs.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeTracker) byType(rt costs.RequestType) []costs.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []costs.Event
	for _, e := range f.events {
		if e.RequestType == rt {
			out = append(out, e)
		}
	}
	return out
}

func endTurn(text string, in, out int) *aichat.ConverseResponse {
	return &aichat.ConverseResponse{
		Message:    aichat.AssistantText(text),
		StopReason: aichat.StopEndTurn,
		Usage:      aichat.Usage{InputTokens: in, OutputTokens: out},
	}
}

func toolUseResponse(uses ...aichat.ToolUseBlock) *aichat.ConverseResponse {
	msg := aichat.Message{Role: aichat.RoleAssistant}
	for i := range uses {
		msg.Content = append(msg.Content, aichat.ContentBlock{ToolUse: &uses[i]})
	}
	return &aichat.ConverseResponse{
		Message:    msg,
		StopReason: aichat.StopToolUse,
		Usage:      aichat.Usage{InputTokens: 1, OutputTokens: 1},
	}
}

type fixture struct {
	engine        *Engine
	conversations *fakeConversations
	assistants    *fakeAssistants
	prompts       *fakePrompts
	connectors    *fakeConnectors
	model         *scriptedModel
	tools         *fakeTools
	augmenter     *fakeAugmenter
	tracker       *fakeTracker
}

func newFixture(model *scriptedModel) *fixture {
	f := &fixture{
		conversations: &fakeConversations{conv: &Conversation{
			ConversationID: "conv-1",
			AssistantID:    "asst-1",
			Channel:        ChannelSandboxTest,
			Status:         ConversationActive,
			SessionVars:    map[string]string{"customerName": "Ada"},
		}},
		assistants: &fakeAssistants{assistant: &Assistant{
			AssistantID:  "asst-1",
			TenantID:     "tenant-1",
			SystemPrompt: "You help customers.",
			Status:       AssistantActive,
		}},
		prompts:    &fakePrompts{},
		connectors: &fakeConnectors{secrets: map[string]string{"apiKey": "k"}},
		model:      model,
		tools:      &fakeTools{},
		augmenter:  &fakeAugmenter{},
		tracker:    &fakeTracker{},
	}
	f.engine = New(Deps{
		Conversations: f.conversations,
		Assistants:    f.assistants,
		Prompts:       f.prompts,
		Connectors:    f.connectors,
		Model:         f.model,
		Augmenter:     f.augmenter,
		Tools:         f.tools,
		Tracker:       f.tracker,
	})
	return f
}

func baseInput() ProcessMessageInput {
	return ProcessMessageInput{
		ConversationID: "conv-1",
		Message:        "hello there",
		AssistantID:    "asst-1",
		TenantID:       "tenant-1",
	}
}

func TestProcessMessageSimpleReply(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("Hello!", 10, 5)}})

	out, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, "Hello!", out.Response)
	assert.Equal(t, UsageSummary{InputTokens: 10, OutputTokens: 5, ToolCalls: 0}, out.Usage)

	// user message then assistant message persisted
	require.Len(t, f.conversations.messages, 2)
	assert.Equal(t, MessageRoleUser, f.conversations.messages[0].Role)
	assert.Equal(t, MessageRoleAssistant, f.conversations.messages[1].Role)
	assert.Equal(t, &TokenUsage{InputTokens: 10, OutputTokens: 5}, f.conversations.messages[1].TokenUsage)

	require.Len(t, f.conversations.statsTokens, 1)
	assert.Equal(t, 15, f.conversations.statsTokens[0])

	assert.Len(t, f.tracker.byType(costs.RequestConverse), 1)
	assert.False(t, f.augmenter.called)
}

func TestProcessMessageConversationNotFound(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("x", 1, 1)}})

	input := baseInput()
	input.ConversationID = "missing"
	_, err := f.engine.ProcessMessage(context.Background(), input)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestProcessMessageAssistantNotFound(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("x", 1, 1)}})
	f.conversations.conv.AssistantID = "other"
	f.conversations.conv.ConversationID = "conv-1"

	input := baseInput()
	input.AssistantID = "other"
	_, err := f.engine.ProcessMessage(context.Background(), input)
	assert.ErrorIs(t, err, ErrAssistantNotFound)
}

func TestProcessMessageToolRound(t *testing.T) {
	uses := []aichat.ToolUseBlock{
		{ToolUseID: "u1", Name: "get_order", Input: jsonval.Object(nil)},
		{ToolUseID: "u2", Name: "get_customer", Input: jsonval.Object(nil)},
		{ToolUseID: "u3", Name: "get_invoice", Input: jsonval.Object(nil)},
	}
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{
		toolUseResponse(uses...),
		endTurn("All done.", 20, 10),
	}})

	out, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, "All done.", out.Response)
	assert.Equal(t, 1, out.Usage.ToolCalls)
	assert.Equal(t, 21, out.Usage.InputTokens)
	assert.Equal(t, 11, out.Usage.OutputTokens)

	// all three tools ran, one result per request matched by id
	assert.Len(t, f.tools.calls, 3)
	require.Len(t, f.model.requests, 2)
	second := f.model.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, aichat.RoleUser, last.Role)
	gotIDs := map[string]bool{}
	for _, block := range last.Content {
		require.NotNil(t, block.ToolResult)
		gotIDs[block.ToolResult.ToolUseID] = true
	}
	assert.Equal(t, map[string]bool{"u1": true, "u2": true, "u3": true}, gotIDs)

	assert.Len(t, f.tracker.byType(costs.RequestConnectorCall), 3)
	assert.Len(t, f.tracker.byType(costs.RequestConverse), 2)
}

func TestProcessMessageToolFailureIsolated(t *testing.T) {
	uses := []aichat.ToolUseBlock{
		{ToolUseID: "u1", Name: "good_tool", Input: jsonval.Object(nil)},
		{ToolUseID: "u2", Name: "bad_tool", Input: jsonval.Object(nil)},
	}
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{
		toolUseResponse(uses...),
		endTurn("Recovered.", 5, 5),
	}})
	f.tools.fail = map[string]bool{"bad_tool": true}

	out, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", out.Response)

	second := f.model.requests[1]
	last := second.Messages[len(second.Messages)-1]
	statuses := map[string]aichat.ToolResultStatus{}
	for _, block := range last.Content {
		statuses[block.ToolResult.ToolUseID] = block.ToolResult.Status
	}
	assert.Equal(t, aichat.ToolResultSuccess, statuses["u1"])
	assert.Equal(t, aichat.ToolResultError, statuses["u2"])
}

func TestProcessMessageRoundLimit(t *testing.T) {
	// a model that always wants tools, even with zero tool-use blocks
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{
		{Message: aichat.Message{Role: aichat.RoleAssistant}, StopReason: aichat.StopToolUse},
	}})

	out, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, "I apologize, but I was unable to complete the request. Please try again.", out.Response)
	// the limit check runs after the increment, so round 6 is reached
	assert.Equal(t, 6, out.Usage.ToolCalls)
	assert.Equal(t, 6, f.model.calls)

	// the apology is not persisted as an assistant message
	require.Len(t, f.conversations.messages, 1)
	assert.Equal(t, MessageRoleUser, f.conversations.messages[0].Role)
	assert.Empty(t, f.conversations.statsTokens)
}

func TestProcessMessageModelFailureAborts(t *testing.T) {
	f := newFixture(&scriptedModel{err: errors.New("throttled")})

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model call")

	// only the inbound user message was persisted
	require.Len(t, f.conversations.messages, 1)
}

func TestProcessMessageActivePromptResolved(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.prompts.active = &Prompt{Content: "Greet {{customerName}} in {{tone}} tone."}

	input := baseInput()
	input.PromptVariables = map[string]string{"tone": "formal"}
	_, err := f.engine.ProcessMessage(context.Background(), input)
	require.NoError(t, err)

	sys := f.model.requests[0].System
	assert.Contains(t, sys, "You help customers.")
	// session vars and prompt variables both resolve
	assert.Contains(t, sys, "Greet Ada in formal tone.")
}

func TestProcessMessageKnowledgeBase(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})

	input := baseInput()
	input.KnowledgeBaseID = "kb-1"
	_, err := f.engine.ProcessMessage(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, f.augmenter.called)
	assert.Contains(t, f.model.requests[0].System, "[retrieved context]")
	assert.Len(t, f.tracker.byType(costs.RequestKBRetrieve), 1)

	// retrieval is billed before any model call
	require.NotEmpty(t, f.tracker.events)
	assert.Equal(t, costs.RequestKBRetrieve, f.tracker.events[0].RequestType)
	assert.Equal(t, costs.RequestConverse, f.tracker.events[1].RequestType)
}

func TestProcessMessageAssistantKnowledgeBaseFallback(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.assistants.assistant.KnowledgeBaseEnabled = true
	f.assistants.assistant.KnowledgeBaseID = "kb-default"

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.True(t, f.augmenter.called)
}

func TestProcessMessageRetrievalFailurePropagates(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.augmenter.err = errors.New("kb offline")

	input := baseInput()
	input.KnowledgeBaseID = "kb-1"
	_, err := f.engine.ProcessMessage(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge base retrieval")
}

func TestProcessMessageModelOverrides(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.assistants.assistant.ModelID = "assistant-model"

	// assistant model applies when no override is given
	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, "assistant-model", f.model.requests[0].ModelID)

	// explicit override wins
	input := baseInput()
	input.ModelID = "override-model"
	input.InferenceConfig = &InferenceConfig{MaxTokens: 256, Temperature: 0.2, TopP: 0.5}
	_, err = f.engine.ProcessMessage(context.Background(), input)
	require.NoError(t, err)
	req := f.model.requests[len(f.model.requests)-1]
	assert.Equal(t, "override-model", req.ModelID)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, 0.2, req.Temperature)
}

func TestProcessMessageDefaultModel(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, defaultModelID, f.model.requests[0].ModelID)
	assert.Equal(t, defaultInferenceConfig.MaxTokens, f.model.requests[0].MaxTokens)
}

func TestProcessMessageToolSpecsFromConnectors(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.connectors.connectors = []connector.DataConnector{{
		ConnectorID: "conn-1",
		Enabled:     true,
		Tools: []connector.Tool{
			{Name: "get_order", Description: "fetch an order"},
		},
	}}

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	require.Len(t, f.model.requests[0].Tools, 1)
	assert.Equal(t, "get_order", f.model.requests[0].Tools[0].Name)
}

func TestProcessMessageHistoryOrder(t *testing.T) {
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{endTurn("ok", 1, 1)}})
	f.conversations.messages = []*Message{
		{Role: MessageRoleUser, Content: "earlier question"},
		{Role: MessageRoleAssistant, Content: "earlier answer"},
	}

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)

	msgs := f.model.requests[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "earlier question", aichat.TextContent(msgs[0]))
	assert.Equal(t, "earlier answer", aichat.TextContent(msgs[1]))
	assert.Equal(t, "hello there", aichat.TextContent(msgs[2]))
}

func TestNewConversationDefaults(t *testing.T) {
	conv := NewConversation("asst-1", "", "", nil)
	assert.NotEmpty(t, conv.ConversationID)
	assert.Equal(t, ChannelSandboxTest, conv.Channel)
	assert.Equal(t, ConversationActive, conv.Status)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestProcessMessageStopReasonFallthrough(t *testing.T) {
	// an unexpected stop reason terminates the turn like end_turn
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{{
		Message:    aichat.AssistantText("cut short"),
		StopReason: aichat.StopMaxTokens,
		Usage:      aichat.Usage{InputTokens: 2, OutputTokens: 3},
	}}})

	out, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, "cut short", out.Response)
}

func TestProcessMessageConcurrentToolsAllComplete(t *testing.T) {
	var uses []aichat.ToolUseBlock
	for i := 0; i < 8; i++ {
		uses = append(uses, aichat.ToolUseBlock{
			ToolUseID: fmt.Sprintf("u%d", i),
			Name:      fmt.Sprintf("tool_%d", i),
			Input:     jsonval.Object(nil),
		})
	}
	f := newFixture(&scriptedModel{responses: []*aichat.ConverseResponse{
		toolUseResponse(uses...),
		endTurn("done", 1, 1),
	}})

	_, err := f.engine.ProcessMessage(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Len(t, f.tools.calls, 8)
}
