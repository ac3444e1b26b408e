// Package main provides the devserve command-line interface.
// Devserve is a local development HTTPS server that serves static files over
// TLS, generating a self-signed certificate on first run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arhuman/devserve/internal/certs"
	"github.com/arhuman/devserve/internal/config"
	"github.com/arhuman/devserve/internal/logging"
	"github.com/arhuman/devserve/internal/version"
	"github.com/arhuman/devserve/internal/web"

	"go.uber.org/zap"
)

func main() {

	// Check for version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("Devserve %s\n", version.Info())
		return
	}

	// Load configuration from environment, .env file, and command line flags
	cfg, err := config.LoadServeConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logger, _, err := logging.SetupLogger(cfg.Debug)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger, start := logging.FuncLogger(logger, "main")
	defer logging.FuncExit(logger, start)

	logger.Info("Starting devserve", zap.String("version", version.Component("Devserve")))
	cfg.LogConfig(logger)

	// Make sure a credential bundle exists before TLS setup
	if err := certs.Ensure(cfg.CertFile, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to provision TLS credentials: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "To fix this, either:")
		fmt.Fprintln(os.Stderr, "  - install openssl and make sure it is on PATH, or")
		fmt.Fprintf(os.Stderr, "  - supply a PEM file (private key + certificate) at %s\n", cfg.CertFile)
		os.Exit(1)
	}

	// Bring up the TLS listener
	server, err := web.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.PrintStartupInfo(os.Stdout)

	// Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
