package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wirebird/wirebird/src/jsonval"
)

// TestOutcome reports a direct connectivity probe against one tool.
type TestOutcome struct {
	Success   bool          `json:"success"`
	Status    int           `json:"status,omitempty"`
	LatencyMs int64         `json:"latencyMs"`
	Response  jsonval.Value `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// TestTool issues one raw call to a connector tool without template
// resolution or auth: the caller-provided input goes out as the request
// body for write methods or as query parameters for read methods. Any
// HTTP status counts as a completed probe; Success reflects status < 400.
func (r *Runtime) TestTool(ctx context.Context, conn DataConnector, toolName string, input jsonval.Value) (TestOutcome, error) {
	var tool *Tool
	for i := range conn.Tools {
		if conn.Tools[i].Name == toolName {
			tool = &conn.Tools[i]
			break
		}
	}
	if tool == nil {
		return TestOutcome{}, fmt.Errorf("tool '%s' not found in connector", toolName)
	}

	timeout := defaultTimeout
	if conn.TimeoutMs > 0 {
		timeout = time.Duration(conn.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(tool.Method)
	target := conn.BaseURL + tool.Path

	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		if !input.IsNull() {
			data, err := input.MarshalJSON()
			if err != nil {
				return TestOutcome{}, err
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return TestOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	if (method == http.MethodGet || method == http.MethodDelete) && input.Kind() == jsonval.KindObject {
		q := url.Values{}
		for _, name := range input.Fields() {
			f, _ := input.Field(name)
			q.Set(name, f.Text())
		}
		req.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return TestOutcome{Success: false, LatencyMs: latency, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TestOutcome{Success: false, Status: resp.StatusCode, LatencyMs: latency, Error: err.Error()}, nil
	}

	payload, err := jsonval.Parse(raw)
	if err != nil {
		payload = jsonval.String(string(raw))
	}

	return TestOutcome{
		Success:   resp.StatusCode < 400,
		Status:    resp.StatusCode,
		LatencyMs: latency,
		Response:  payload,
	}, nil
}
