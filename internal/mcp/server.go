package mcp

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/repochunk/internal/config"
	"github.com/dshills/repochunk/internal/pipeline"
	"github.com/dshills/repochunk/internal/storage"
	"github.com/dshills/repochunk/internal/tokenizer"
)

const (
	// ServerName is the MCP server name
	ServerName = "repochunk"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	storage  storage.Storage // nil when persistence is disabled
}

// NewServer creates a new MCP server instance. A nil logger discards logs.
func NewServer(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	counter, err := tokenizer.New(cfg.TokenizerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithModelLimits(cfg.ModelLimits()),
	}

	var store storage.Storage
	if cfg.Storage.Enabled {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := storage.NewSQLiteStorage(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		store = db
		opts = append(opts, pipeline.WithStorage(store))
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		cfg:      cfg,
		pipeline: pipeline.New(counter, opts...),
		storage:  store,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the storage backend, if any
func (s *Server) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(chunkRepositoryTool(), s.handleChunkRepository)
	s.mcp.AddTool(countTokensTool(), s.handleCountTokens)
	s.mcp.AddTool(getNavigationTool(), s.handleGetNavigation)
	s.mcp.AddTool(getChunkTool(), s.handleGetChunk)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
