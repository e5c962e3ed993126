package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/repochunk/internal/mcp"
	"github.com/dshills/repochunk/internal/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Log startup info to stderr (stdout reserved for MCP protocol)
	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("repochunk MCP server v%s starting...", version)
	logger.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Create MCP server
	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		logger.Printf("Failed to create MCP server: %v", err)
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Printf("Server error: %v", err)
			return err
		}
	}

	logger.Println("Server stopped")
	return nil
}
