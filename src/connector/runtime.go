package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wirebird/wirebird/src/aichat"
	"github.com/wirebird/wirebird/src/jsonval"
	"github.com/wirebird/wirebird/src/template"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseSize = 10000
)

// Runtime executes model-requested tool calls against connector-declared
// HTTP endpoints.
type Runtime struct {
	client *http.Client
	logger *slog.Logger
}

// NewRuntime builds a Runtime. The client carries no global timeout;
// every call gets a per-connector deadline instead.
func NewRuntime(logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		client: &http.Client{},
		logger: logger,
	}
}

// ExecuteTool resolves a tool-use request to a connector tool, issues the
// HTTP call, and maps the response into a tool result. It never returns an
// error: every failure, from an unknown tool name to a transport fault,
// becomes an error-status result so one bad tool cannot abort the turn.
func (r *Runtime) ExecuteTool(ctx context.Context, use aichat.ToolUseBlock, connectors []DataConnector, sctx SessionContext) aichat.ToolResultBlock {
	start := time.Now()

	conn, tool, err := findTool(use.Name, connectors)
	if err != nil {
		r.logger.Error("connector tool resolution failed",
			"toolName", use.Name, "error", err)
		return errorResult(use.ToolUseID, err)
	}

	r.logger.Info("executing connector tool",
		"toolName", use.Name,
		"connectorId", conn.ConnectorID)

	timeout := defaultTimeout
	if conn.TimeoutMs > 0 {
		timeout = time.Duration(conn.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := r.buildRequest(ctx, conn, tool, use.Input, sctx)
	if err != nil {
		r.logger.Error("connector tool execution failed",
			"toolName", use.Name,
			"latencyMs", time.Since(start).Milliseconds(),
			"error", err)
		return errorResult(use.ToolUseID, err)
	}

	result, status, err := r.execute(req, tool.ResponseMapping)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		r.logger.Error("connector tool execution failed",
			"toolName", use.Name,
			"latencyMs", latency,
			"error", err)
		return errorResult(use.ToolUseID, err)
	}

	r.logger.Info("connector tool executed",
		"toolName", use.Name,
		"latencyMs", latency,
		"status", status)

	return aichat.ToolResultBlock{
		ToolUseID: use.ToolUseID,
		Content:   []jsonval.Value{result},
		Status:    aichat.ToolResultSuccess,
	}
}

func errorResult(toolUseID string, err error) aichat.ToolResultBlock {
	msg := jsonval.Object(map[string]jsonval.Value{
		"error": jsonval.String(fmt.Sprintf("Tool execution failed: %s", err.Error())),
	})
	return aichat.ToolResultBlock{
		ToolUseID: toolUseID,
		Content:   []jsonval.Value{msg},
		Status:    aichat.ToolResultError,
	}
}

// findTool scans connectors in order for the first tool matching name.
func findTool(name string, connectors []DataConnector) (DataConnector, Tool, error) {
	for _, conn := range connectors {
		for _, tool := range conn.Tools {
			if tool.Name == name {
				return conn, tool, nil
			}
		}
	}
	return DataConnector{}, Tool{}, fmt.Errorf("Tool '%s' not found in any connector", name)
}

// inputVars flattens a tool input object into the string variable map the
// template resolver consumes.
func inputVars(input jsonval.Value) map[string]string {
	vars := map[string]string{}
	for _, name := range input.Fields() {
		f, _ := input.Field(name)
		vars[name] = f.Text()
	}
	return vars
}

func merge(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func (r *Runtime) buildRequest(ctx context.Context, conn DataConnector, tool Tool, input jsonval.Value, sctx SessionContext) (*http.Request, error) {
	vars := inputVars(input)

	target := conn.BaseURL + template.Resolve(tool.Path, vars)

	var body io.Reader
	method := strings.ToUpper(tool.Method)
	if !tool.RequestMapping.BodyTemplate.IsNull() && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		// secrets are reachable by bare name inside body templates
		bodyVars := merge(vars, sctx.SessionVars, sctx.Secrets)
		resolved := template.ResolveValue(tool.RequestMapping.BodyTemplate, bodyVars)
		data, err := resolved.MarshalJSON()
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	switch conn.AuthType {
	case AuthBearer:
		if conn.AuthConfig.BearerToken != "" {
			token := template.ResolveSecrets(conn.AuthConfig.BearerToken, sctx.Secrets)
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case AuthAPIKey:
		if conn.AuthConfig.APIKey != "" {
			header := conn.AuthConfig.HeaderName
			if header == "" {
				header = "X-API-Key"
			}
			req.Header.Set(header, template.ResolveSecrets(conn.AuthConfig.APIKey, sctx.Secrets))
		}
	case AuthCustomHeaders:
		for key, value := range conn.AuthConfig.CustomHeaders {
			req.Header.Set(key, template.ResolveSecrets(value, sctx.Secrets))
		}
	}

	// tool-level headers resolve against input plus session vars and may
	// overwrite auth headers on key collision
	headerVars := merge(vars, sctx.SessionVars)
	for key, value := range tool.RequestMapping.Headers {
		req.Header.Set(key, template.Resolve(value, headerVars))
	}

	if len(tool.RequestMapping.QueryParams) > 0 {
		q := url.Values{}
		for key, value := range tool.RequestMapping.QueryParams {
			q.Set(key, template.Resolve(value, vars))
		}
		req.URL.RawQuery = q.Encode()
	}

	return req, nil
}

// execute issues the request under the connector timeout already attached
// to its context and maps the response body.
func (r *Runtime) execute(req *http.Request, mapping *ResponseMapping) (jsonval.Value, int, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return jsonval.Null(), 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonval.Null(), resp.StatusCode, err
	}

	if resp.StatusCode >= 400 {
		return jsonval.Null(), resp.StatusCode, fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	result, err := mapResponse(raw, mapping)
	if err != nil {
		return jsonval.Null(), resp.StatusCode, err
	}
	return result, resp.StatusCode, nil
}

// mapResponse optionally extracts a sub-path of the response and truncates
// oversized payloads to the mapping's byte limit.
func mapResponse(raw []byte, mapping *ResponseMapping) (jsonval.Value, error) {
	data, err := jsonval.Parse(raw)
	if err != nil {
		// non-JSON responses pass through as a string payload
		data = jsonval.String(string(raw))
	}

	if mapping != nil && mapping.ExtractPath != "" {
		data = jsonval.ExtractPath(data, mapping.ExtractPath)
	}

	maxSize := defaultMaxResponseSize
	if mapping != nil && mapping.MaxResponseSize > 0 {
		maxSize = mapping.MaxResponseSize
	}

	serialized, err := data.MarshalJSON()
	if err != nil {
		return jsonval.Null(), err
	}
	if len(serialized) > maxSize {
		truncated, err := jsonval.Parse(append(serialized[:maxSize], []byte(`..."}}`)...))
		if err != nil {
			return jsonval.Null(), errors.New("response too large to truncate cleanly")
		}
		return truncated, nil
	}
	return data, nil
}
