package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wirebird/wirebird/src/engine"
)

type createConversationRequest struct {
	AssistantID string            `json:"assistantId"`
	Channel     string            `json:"channel"`
	PhoneNumber string            `json:"phoneNumber"`
	SessionVars map[string]string `json:"sessionVars"`
}

// CreateConversation opens a new conversation for an assistant.
// POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()

	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.AssistantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "assistantId is required"})
	}

	conv := engine.NewConversation(req.AssistantID, engine.Channel(req.Channel), req.PhoneNumber, req.SessionVars)
	if err := h.conversations.Create(ctx, conv); err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create conversation"})
	}

	return c.JSON(http.StatusCreated, conv)
}

// GetConversation returns one conversation.
// GET /v1/conversations/:conversation_id?assistantId=
func (h *Handler) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("conversation_id")
	assistantID := c.QueryParam("assistantId")
	if assistantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "assistantId is required"})
	}

	conv, err := h.conversations.Get(ctx, assistantID, conversationID)
	if err != nil {
		if errors.Is(err, engine.ErrConversationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		h.logger.Error("failed to get conversation", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get conversation"})
	}

	messages, err := h.conversations.GetMessages(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to get messages", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get messages"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

// ListConversations returns an assistant's conversations, most recently
// updated first.
// GET /v1/assistants/:assistant_id/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()
	assistantID := c.Param("assistant_id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}

	convs, err := h.conversations.ListByAssistant(ctx, assistantID, limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list conversations"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}
