package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wirebird/wirebird/src/engine"
)

type postMessageRequest struct {
	Message         string                  `json:"message"`
	AssistantID     string                  `json:"assistantId"`
	TenantID        string                  `json:"tenantId"`
	PromptVariables map[string]string       `json:"promptVariables"`
	KnowledgeBaseID string                  `json:"knowledgeBaseId"`
	ModelID         string                  `json:"modelId"`
	InferenceConfig *engine.InferenceConfig `json:"inferenceConfig"`
}

// PostMessage submits one user message and returns the assistant reply.
// POST /v1/conversations/:conversation_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("conversation_id")

	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}
	if req.AssistantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "assistantId is required"})
	}

	out, err := h.engine.ProcessMessage(ctx, engine.ProcessMessageInput{
		ConversationID:  conversationID,
		Message:         req.Message,
		AssistantID:     req.AssistantID,
		TenantID:        req.TenantID,
		PromptVariables: req.PromptVariables,
		KnowledgeBaseID: req.KnowledgeBaseID,
		ModelID:         req.ModelID,
		InferenceConfig: req.InferenceConfig,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrConversationNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		case errors.Is(err, engine.ErrAssistantNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "assistant not found"})
		}
		h.logger.Error("failed to process message",
			"conversationId", conversationID,
			"error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process message"})
	}

	return c.JSON(http.StatusOK, out)
}
