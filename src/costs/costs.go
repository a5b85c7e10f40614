// Package costs records per-request usage telemetry: one immutable event
// per model call, retrieval call, or connector call. Recording is
// deliberately fire-and-forget: a telemetry failure must never fail the
// conversation that produced it.
package costs

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestType classifies what kind of call an event accounts for.
type RequestType string

const (
	RequestConverse      RequestType = "converse"
	RequestKBRetrieve    RequestType = "kb-retrieve"
	RequestKBRerank      RequestType = "kb-rerank"
	RequestConnectorCall RequestType = "connector-call"
)

// Event is one recorded billable request. Token fields are zero for
// non-token request types such as connector calls.
type Event struct {
	ID             string      `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversationId"`
	TenantID       string      `db:"tenant_id" json:"tenantId"`
	AssistantID    string      `db:"assistant_id" json:"assistantId"`
	RequestType    RequestType `db:"request_type" json:"requestType"`
	ModelID        string      `db:"model_id" json:"modelId"`
	InputTokens    int         `db:"input_tokens" json:"inputTokens"`
	OutputTokens   int         `db:"output_tokens" json:"outputTokens"`
	LatencyMs      int64       `db:"latency_ms" json:"latencyMs"`
	EstimatedCost  float64     `db:"estimated_cost" json:"estimatedCost"`
	Timestamp      time.Time   `db:"timestamp" json:"timestamp"`
}

// Store persists cost events.
type Store interface {
	InsertCostEvent(ctx context.Context, event *Event) error
}

// Pricing is the per-1000-token price of a model family.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// modelPricing maps a model family substring to its price. Longest match
// wins so "claude-3-5-haiku" is not shadowed by "claude-3-haiku".
var modelPricing = map[string]Pricing{
	"claude-3-5-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-sonnet":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-opus":     {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-3-5-haiku":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-haiku":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
}

// defaultPricing applies when no family matches, so unknown models still
// produce a nonzero estimate.
var defaultPricing = Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}

// PricingFor resolves the price table entry for a model identifier.
func PricingFor(modelID string) Pricing {
	best := ""
	for family := range modelPricing {
		if strings.Contains(modelID, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return defaultPricing
	}
	return modelPricing[best]
}

// Estimate computes the dollar cost of one token-based call.
func Estimate(modelID string, inputTokens, outputTokens int) float64 {
	p := PricingFor(modelID)
	return float64(inputTokens)/1000*p.InputPer1K +
		float64(outputTokens)/1000*p.OutputPer1K
}

// Tracker appends cost events to a store.
type Tracker struct {
	store  Store
	logger *slog.Logger
}

// NewTracker builds a Tracker. A nil logger falls back to slog.Default.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// Track persists one event, assigning its identifier, timestamp, and cost
// estimate. Store errors are logged and swallowed.
func (t *Tracker) Track(ctx context.Context, event Event) {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if event.EstimatedCost == 0 && (event.InputTokens > 0 || event.OutputTokens > 0) {
		event.EstimatedCost = Estimate(event.ModelID, event.InputTokens, event.OutputTokens)
	}
	if err := t.store.InsertCostEvent(ctx, &event); err != nil {
		t.logger.Warn("failed to track cost event",
			"conversationId", event.ConversationID,
			"requestType", event.RequestType,
			"modelId", event.ModelID,
			"error", err)
	}
}
