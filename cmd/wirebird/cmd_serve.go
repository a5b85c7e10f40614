package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wirebird/wirebird/src/app"
	"github.com/wirebird/wirebird/src/config"
)

// ServeCmd runs the HTTP server until interrupted.
type ServeCmd struct {
	Host string `help:"Listen host (overrides config)"`
	Port int    `help:"Listen port (overrides config)"`
}

// Run executes the serve command
func (c *ServeCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	logger := createLogger(cfg.Logging, cli)

	appInstance, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer appInstance.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- appInstance.Server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return appInstance.Server.Shutdown(shutdownCtx)
}
