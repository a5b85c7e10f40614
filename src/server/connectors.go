package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/engine"
	"github.com/wirebird/wirebird/src/jsonval"
)

type testConnectorRequest struct {
	ToolName string        `json:"toolName"`
	Input    jsonval.Value `json:"input"`
}

// TestConnector probes one connector tool and records the outcome on the
// connector.
// POST /v1/assistants/:assistant_id/connectors/:connector_id/test
func (h *Handler) TestConnector(c echo.Context) error {
	ctx := c.Request().Context()
	assistantID := c.Param("assistant_id")
	connectorID := c.Param("connector_id")

	var req testConnectorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ToolName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "toolName is required"})
	}

	conn, err := h.connectors.Get(ctx, assistantID, connectorID)
	if err != nil {
		if errors.Is(err, engine.ErrConnectorNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "connector not found"})
		}
		h.logger.Error("failed to get connector", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get connector"})
	}

	outcome, err := h.tester.TestTool(ctx, *conn, req.ToolName, req.Input)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := connector.TestFailure
	if outcome.Success {
		result = connector.TestSuccess
	}
	if err := h.connectors.UpdateTestResult(ctx, assistantID, connectorID, result); err != nil {
		h.logger.Warn("failed to record connector test result",
			"connectorId", connectorID,
			"error", err)
	}

	return c.JSON(http.StatusOK, outcome)
}
