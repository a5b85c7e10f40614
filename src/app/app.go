// Package app wires configuration, storage, AWS clients, and the engine
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wirebird/wirebird/src/bedrock"
	"github.com/wirebird/wirebird/src/config"
	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/costs"
	"github.com/wirebird/wirebird/src/engine"
	"github.com/wirebird/wirebird/src/rag"
	"github.com/wirebird/wirebird/src/server"
	"github.com/wirebird/wirebird/src/storage"
)

// App holds every initialized service.
type App struct {
	Config *config.Config
	Store  *storage.DB
	Engine *engine.Engine
	Server *server.Server
	Logger *slog.Logger

	Conversations *storage.ConversationStore
	Assistants    *storage.AssistantStore
	Prompts       *storage.PromptStore
	Connectors    *storage.ConnectorStore
	CostEvents    *storage.CostStore
}

// New initializes all services from the configuration. The returned App
// owns the database handle; call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	conversations := storage.NewConversationStore(store)
	assistants := storage.NewAssistantStore(store)
	prompts := storage.NewPromptStore(store)
	connectors := storage.NewConnectorStore(store)
	costEvents := storage.NewCostStore(store)

	runtimeClient, err := bedrock.NewRuntimeClient(ctx, cfg.AWS.Region)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init bedrock runtime client: %w", err)
	}
	agentClient, err := bedrock.NewAgentRuntimeClient(ctx, cfg.AWS.Region)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init bedrock agent runtime client: %w", err)
	}

	gateway := bedrock.NewGateway(runtimeClient, logger)
	retriever := bedrock.NewKnowledgeBaseRetriever(agentClient)
	augmenter := rag.NewAugmenter(retriever, logger)
	runtime := connector.NewRuntime(logger)
	tracker := costs.NewTracker(costEvents, logger)

	eng := engine.New(engine.Deps{
		Conversations: conversations,
		Assistants:    assistants,
		Prompts:       prompts,
		Connectors:    connectors,
		Model:         gateway,
		Augmenter:     augmenter,
		Tools:         runtime,
		Tracker:       tracker,
		Logger:        logger,

		DefaultModelID: cfg.Engine.DefaultModelID,
		DefaultInference: &engine.InferenceConfig{
			MaxTokens:   cfg.Engine.MaxTokens,
			Temperature: cfg.Engine.Temperature,
			TopP:        cfg.Engine.TopP,
		},
	})

	handler := server.NewHandler(eng, conversations, connectors, runtime, logger)
	srv := server.New(cfg.Server, handler, logger)

	return &App{
		Config: cfg,
		Store:  store,
		Engine: eng,
		Server: srv,
		Logger: logger,

		Conversations: conversations,
		Assistants:    assistants,
		Prompts:       prompts,
		Connectors:    connectors,
		CostEvents:    costEvents,
	}, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
