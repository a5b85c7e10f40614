// Package server exposes the conversation engine over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/engine"
	"github.com/wirebird/wirebird/src/jsonval"
)

// MessageProcessor runs one conversation turn.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, input engine.ProcessMessageInput) (*engine.ProcessMessageOutput, error)
}

// ToolTester probes one connector tool directly.
type ToolTester interface {
	TestTool(ctx context.Context, conn connector.DataConnector, toolName string, input jsonval.Value) (connector.TestOutcome, error)
}

// Handler handles HTTP requests.
type Handler struct {
	engine        MessageProcessor
	conversations engine.ConversationStore
	connectors    engine.ConnectorStore
	tester        ToolTester
	logger        *slog.Logger
}

// NewHandler creates a new handler. A nil logger falls back to
// slog.Default.
func NewHandler(eng MessageProcessor, conversations engine.ConversationStore, connectors engine.ConnectorStore, tester ToolTester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:        eng,
		conversations: conversations,
		connectors:    connectors,
		tester:        tester,
		logger:        logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/conversations", h.CreateConversation)
	e.GET("/v1/conversations/:conversation_id", h.GetConversation)
	e.GET("/v1/assistants/:assistant_id/conversations", h.ListConversations)
	e.POST("/v1/conversations/:conversation_id/messages", h.PostMessage)
	e.POST("/v1/assistants/:assistant_id/connectors/:connector_id/test", h.TestConnector)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
