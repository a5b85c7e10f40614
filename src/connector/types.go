// Package connector models tenant-configured external HTTP APIs and
// executes model-requested tool calls against them.
package connector

import (
	"time"

	"github.com/wirebird/wirebird/src/aichat"
	"github.com/wirebird/wirebird/src/jsonval"
)

// AuthType selects how credentials attach to a connector's requests.
type AuthType string

const (
	AuthNone          AuthType = "none"
	AuthAPIKey        AuthType = "api_key"
	AuthBearer        AuthType = "bearer"
	AuthBasic         AuthType = "basic"
	AuthOAuth2        AuthType = "oauth2"
	AuthCustomHeaders AuthType = "custom_headers"
)

// Type classifies the backing system of a connector.
type Type string

const (
	TypeRESTAPI  Type = "rest_api"
	TypeGraphQL  Type = "graphql"
	TypeDatabase Type = "database"
	TypeWebhook  Type = "webhook"
)

// Trigger controls when a connector's tools are offered to the model.
type Trigger string

const (
	TriggerOnDemand            Trigger = "on_demand"
	TriggerOnConversationStart Trigger = "on_conversation_start"
	TriggerOnKeyword           Trigger = "on_keyword"
)

// TestResult records the outcome of the most recent connectivity test.
type TestResult string

const (
	TestSuccess TestResult = "success"
	TestFailure TestResult = "failure"
)

// OAuth2Config holds client-credential settings. Accepted in connector
// declarations but not consulted at execution time.
type OAuth2Config struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	TokenURL     string `json:"tokenUrl"`
}

// AuthConfig carries the credential material for a connector. String
// values may themselves be {{secret:name}} placeholders resolved against
// the tenant's secret map at execution time.
type AuthConfig struct {
	APIKey        string            `json:"apiKey,omitempty"`
	HeaderName    string            `json:"headerName,omitempty"`
	BearerToken   string            `json:"bearerToken,omitempty"`
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
	OAuth2        *OAuth2Config     `json:"oauth2,omitempty"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
}

// RequestMapping describes how a tool's input becomes an HTTP request.
// All string values are placeholder templates.
type RequestMapping struct {
	Headers      map[string]string `json:"headers,omitempty"`
	QueryParams  map[string]string `json:"queryParams,omitempty"`
	BodyTemplate jsonval.Value     `json:"bodyTemplate,omitempty"`
	PathParams   map[string]string `json:"pathParams,omitempty"`
}

// ResponseMapping describes how an HTTP response becomes a tool result.
type ResponseMapping struct {
	ExtractPath     string `json:"extractPath,omitempty"`
	SummaryTemplate string `json:"summaryTemplate,omitempty"`
	MaxResponseSize int    `json:"maxResponseSize,omitempty"`
}

// Tool is one callable action on a connector. Name is the model-facing
// tool name and must be unique across an assistant's connector set.
type Tool struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Method          string           `json:"method"`
	Path            string           `json:"path"`
	InputSchema     jsonval.Value    `json:"inputSchema"`
	RequestMapping  RequestMapping   `json:"requestMapping"`
	ResponseMapping *ResponseMapping `json:"responseMapping,omitempty"`
}

// RetryConfig is accepted in declarations but execution performs no
// retries regardless of its contents.
type RetryConfig struct {
	MaxRetries int `json:"maxRetries"`
	BackoffMs  int `json:"backoffMs"`
}

// TriggerConfig refines keyword-triggered connectors.
type TriggerConfig struct {
	Keywords     []string          `json:"keywords,omitempty"`
	InputMapping map[string]string `json:"inputMapping,omitempty"`
}

// DataConnector is a tenant-owned, assistant-scoped declaration of an
// external HTTP API and the tools it exposes.
type DataConnector struct {
	ConnectorID            string         `json:"connectorId"`
	TenantID               string         `json:"tenantId"`
	AssistantID            string         `json:"assistantId"`
	Name                   string         `json:"name"`
	Description            string         `json:"description"`
	Type                   Type           `json:"type"`
	BaseURL                string         `json:"baseUrl"`
	AuthType               AuthType       `json:"authType"`
	AuthConfig             AuthConfig     `json:"authConfig"`
	Tools                  []Tool         `json:"tools"`
	Trigger                Trigger        `json:"trigger"`
	TriggerConfig          *TriggerConfig `json:"triggerConfig,omitempty"`
	MaxCallsPerConversation int           `json:"maxCallsPerConversation"`
	TimeoutMs              int            `json:"timeoutMs"`
	CacheTTLSeconds        int            `json:"cacheTtlSeconds,omitempty"`
	RetryConfig            *RetryConfig   `json:"retryConfig,omitempty"`
	Enabled                bool           `json:"enabled"`
	LastTestedAt           *time.Time     `json:"lastTestedAt,omitempty"`
	LastTestResult         TestResult     `json:"lastTestResult,omitempty"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

// SessionContext carries the per-turn variables and tenant secrets that
// templates resolve against.
type SessionContext struct {
	SessionVars map[string]string
	Secrets     map[string]string
}

// ToolSpecs flattens the tools of the given connectors into the
// model-facing specification list. Tools declared without an input
// schema get one inferred from their request mapping.
func ToolSpecs(connectors []DataConnector) []aichat.ToolSpec {
	var specs []aichat.ToolSpec
	for _, conn := range connectors {
		for _, tool := range conn.Tools {
			inputSchema := tool.InputSchema
			if inputSchema.IsNull() {
				inputSchema = InferInputSchema(tool)
			}
			specs = append(specs, aichat.ToolSpec{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: inputSchema,
			})
		}
	}
	return specs
}
