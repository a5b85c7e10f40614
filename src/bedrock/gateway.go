// Package bedrock adapts the AWS Bedrock runtime APIs to the chat and
// retrieval interfaces the orchestration loop consumes.
package bedrock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wirebird/wirebird/src/aichat"
)

// converseAPI is the slice of the Bedrock runtime client the gateway uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Gateway wraps the Bedrock Converse API behind the aichat.ModelClient
// contract.
type Gateway struct {
	client converseAPI
	logger *slog.Logger
}

var _ aichat.ModelClient = (*Gateway)(nil)

// NewGateway builds a Gateway over an existing Bedrock runtime client.
func NewGateway(client *bedrockruntime.Client, logger *slog.Logger) *Gateway {
	return newGateway(client, logger)
}

func newGateway(client converseAPI, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// NewRuntimeClient loads AWS configuration for the given region and
// returns a Bedrock runtime client.
func NewRuntimeClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

// Converse issues one model call. Transport and model errors propagate;
// there is no retry at this layer.
func (g *Gateway) Converse(ctx context.Context, req *aichat.ConverseRequest) (*aichat.ConverseResponse, error) {
	messages, err := toConverseMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	inference := &bedrocktypes.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(req.Temperature))
	}
	if req.TopP > 0 {
		inference.TopP = aws.Float32(float32(req.TopP))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.ModelID),
		Messages:        messages,
		InferenceConfig: inference,
	}
	if req.System != "" {
		input.System = []bedrocktypes.SystemContentBlock{
			&bedrocktypes.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = toToolConfig(req.Tools)
	}

	output, err := g.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse failed: %w", err)
	}

	msg, err := fromConverseOutput(output)
	if err != nil {
		return nil, err
	}

	resp := &aichat.ConverseResponse{
		Message:    msg,
		StopReason: aichat.StopReason(output.StopReason),
	}
	if output.Usage != nil {
		resp.Usage = aichat.Usage{
			InputTokens:  int(aws.ToInt32(output.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
		}
	}

	g.logger.Debug("bedrock converse",
		"modelId", req.ModelID,
		"stopReason", resp.StopReason,
		"inputTokens", resp.Usage.InputTokens,
		"outputTokens", resp.Usage.OutputTokens)

	return resp, nil
}
