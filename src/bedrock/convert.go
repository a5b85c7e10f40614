package bedrock

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wirebird/wirebird/src/aichat"
	"github.com/wirebird/wirebird/src/jsonval"
)

func toRole(role aichat.Role) bedrocktypes.ConversationRole {
	if role == aichat.RoleAssistant {
		return bedrocktypes.ConversationRoleAssistant
	}
	return bedrocktypes.ConversationRoleUser
}

// toConverseMessages converts chat messages to the Converse wire shape.
func toConverseMessages(messages []aichat.Message) ([]bedrocktypes.Message, error) {
	out := make([]bedrocktypes.Message, 0, len(messages))
	for _, msg := range messages {
		var blocks []bedrocktypes.ContentBlock
		for _, block := range msg.Content {
			switch {
			case block.Text != nil:
				if *block.Text == "" {
					continue
				}
				blocks = append(blocks, &bedrocktypes.ContentBlockMemberText{Value: *block.Text})
			case block.ToolUse != nil:
				blocks = append(blocks, &bedrocktypes.ContentBlockMemberToolUse{
					Value: bedrocktypes.ToolUseBlock{
						ToolUseId: aws.String(block.ToolUse.ToolUseID),
						Name:      aws.String(block.ToolUse.Name),
						Input:     document.NewLazyDocument(block.ToolUse.Input.Interface()),
					},
				})
			case block.ToolResult != nil:
				content := make([]bedrocktypes.ToolResultContentBlock, 0, len(block.ToolResult.Content))
				for _, item := range block.ToolResult.Content {
					content = append(content, &bedrocktypes.ToolResultContentBlockMemberJson{
						Value: document.NewLazyDocument(item.Interface()),
					})
				}
				status := bedrocktypes.ToolResultStatusSuccess
				if block.ToolResult.Status == aichat.ToolResultError {
					status = bedrocktypes.ToolResultStatusError
				}
				blocks = append(blocks, &bedrocktypes.ContentBlockMemberToolResult{
					Value: bedrocktypes.ToolResultBlock{
						ToolUseId: aws.String(block.ToolResult.ToolUseID),
						Content:   content,
						Status:    status,
					},
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		out = append(out, bedrocktypes.Message{
			Role:    toRole(msg.Role),
			Content: blocks,
		})
	}
	return out, nil
}

// toToolConfig converts tool specifications to the Converse tool
// configuration shape.
func toToolConfig(tools []aichat.ToolSpec) *bedrocktypes.ToolConfiguration {
	converseTools := make([]bedrocktypes.Tool, 0, len(tools))
	for _, tool := range tools {
		schema := tool.InputSchema
		if schema.IsNull() {
			schema = jsonval.Object(map[string]jsonval.Value{
				"type":       jsonval.String("object"),
				"properties": jsonval.Object(nil),
			})
		}
		converseTools = append(converseTools, &bedrocktypes.ToolMemberToolSpec{
			Value: bedrocktypes.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &bedrocktypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema.Interface()),
				},
			},
		})
	}
	return &bedrocktypes.ToolConfiguration{Tools: converseTools}
}

// fromConverseOutput extracts the reply message from a Converse output.
func fromConverseOutput(output *bedrockruntime.ConverseOutput) (aichat.Message, error) {
	msg := aichat.Message{Role: aichat.RoleAssistant}

	outMsg, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok {
		return msg, fmt.Errorf("unexpected converse output type %T", output.Output)
	}

	for _, block := range outMsg.Value.Content {
		switch b := block.(type) {
		case *bedrocktypes.ContentBlockMemberText:
			msg.Content = append(msg.Content, aichat.TextBlock(b.Value))
		case *bedrocktypes.ContentBlockMemberToolUse:
			input := jsonval.Object(nil)
			if b.Value.Input != nil {
				raw, err := json.Marshal(b.Value.Input)
				if err == nil {
					if parsed, perr := jsonval.Parse(raw); perr == nil {
						input = parsed
					}
				}
			}
			msg.Content = append(msg.Content, aichat.ContentBlock{
				ToolUse: &aichat.ToolUseBlock{
					ToolUseID: aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Input:     input,
				},
			})
		}
	}
	return msg, nil
}
