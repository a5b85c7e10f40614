package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/wirebird/wirebird/src/app"
	"github.com/wirebird/wirebird/src/config"
	"github.com/wirebird/wirebird/src/engine"
)

// SendCmd sends one message through the engine and prints the reply.
// Useful for trying an assistant without standing up the server.
type SendCmd struct {
	Text []string `arg:"" help:"The message text to send"`

	Assistant     string `short:"a" required:"" help:"Assistant ID"`
	Conversation  string `help:"Existing conversation ID (a new sandbox conversation is created when omitted)"`
	Tenant        string `help:"Tenant ID for secret resolution"`
	Model         string `short:"m" help:"Override the model for this message"`
	KnowledgeBase string `help:"Knowledge base ID to retrieve from"`
}

// Run executes the send command
func (c *SendCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.Logging, cli)

	cctx := context.Background()
	appInstance, err := app.New(cctx, cfg, logger)
	if err != nil {
		return err
	}
	defer appInstance.Close()

	conversationID := c.Conversation
	if conversationID == "" {
		conv := engine.NewConversation(c.Assistant, engine.ChannelSandboxTest, "", nil)
		if err := appInstance.Conversations.Create(cctx, conv); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ConversationID
		fmt.Printf("conversation: %s\n", conversationID)
	}

	out, err := appInstance.Engine.ProcessMessage(cctx, engine.ProcessMessageInput{
		ConversationID:  conversationID,
		Message:         strings.Join(c.Text, " "),
		AssistantID:     c.Assistant,
		TenantID:        c.Tenant,
		ModelID:         c.Model,
		KnowledgeBaseID: c.KnowledgeBase,
	})
	if err != nil {
		return err
	}

	fmt.Println(out.Response)
	fmt.Printf("\n[tokens in=%d out=%d, tool calls=%d]\n",
		out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.ToolCalls)
	return nil
}
