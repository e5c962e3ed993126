package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/repochunk/internal/chunker"
	"github.com/dshills/repochunk/internal/pipeline"
	"github.com/dshills/repochunk/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path is not a readable directory
	ErrorCodeChunkingInProgress = -32002 // Another chunking run is already in progress
	ErrorCodeRunNotFound        = -32003 // No such run
	ErrorCodeChunkNotFound      = -32004 // No such chunk
	ErrorCodeTokenization       = -32005 // The token counter failed
)

// handleChunkRepository handles the chunk_repository tool invocation
func (s *Server) handleChunkRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		code := ErrorCodePathNotFound
		if errors.Is(err, ErrPathNotAbsolute) {
			code = ErrorCodeInvalidParams
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts, err := s.cfg.ChunkOptions()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "invalid server configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if name := getStringDefault(args, "strategy", ""); name != "" {
		strategy, err := chunker.ParseStrategy(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
				"param":   "strategy",
				"value":   name,
				"allowed": strategyNames(),
			})
		}
		opts.Strategy = strategy
	}
	opts.MaxTokensPerChunk = getIntDefault(args, "max_tokens", opts.MaxTokensPerChunk)
	opts.Model = getStringDefault(args, "model", opts.Model)
	includeContent := getBoolDefault(args, "include_content", false)
	useCache := getBoolDefault(args, "use_cache", s.cfg.Storage.Cache)

	out, err := s.pipeline.Run(ctx, pipeline.Request{
		Root:     path,
		Discover: s.cfg.DiscoverOptions(),
		Chunking: opts,
		Cache:    useCache,
	})
	if err != nil {
		return nil, runError(err)
	}

	stats := out.Statistics
	response := map[string]interface{}{
		"run_id": out.RunID,
		"cached": out.Cached,
		"statistics": map[string]interface{}{
			"files_processed": stats.FilesProcessed,
			"total_chunks":    stats.TotalChunks,
			"total_tokens":    stats.TotalTokens,
			"strategy":        stats.Strategy,
			"model":           stats.Model,
			"model_limit":     stats.ModelLimit,
			"fits_in_window":  stats.FitsInWindow,
			"duration_ms":     stats.Duration.Milliseconds(),
		},
		"navigation": out.Navigation,
	}
	if includeContent {
		response["chunks"] = out.Chunks
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCountTokens handles the count_tokens tool invocation
func (s *Server) handleCountTokens(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or not a string",
		})
	}
	model := getStringDefault(args, "model", s.cfg.Model)

	tokens, err := s.pipeline.Counter().CountTokens(text, model)
	if err != nil {
		return nil, newMCPError(ErrorCodeTokenization, "token counting failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	limit := s.pipeline.ModelLimits().Limit(model)
	response := map[string]interface{}{
		"tokens":         tokens,
		"model":          model,
		"context_window": limit,
		"fits":           tokens <= limit,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetNavigation handles the get_navigation tool invocation
func (s *Server) handleGetNavigation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	runID := getStringDefault(args, "run_id", "")

	out, err := s.pipeline.Lookup(ctx, runID)
	if err != nil {
		return nil, runError(err)
	}

	response := map[string]interface{}{
		"run_id":     out.RunID,
		"navigation": out.Navigation,
		"summaries":  out.Summaries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetChunk handles the get_chunk tool invocation
func (s *Server) handleGetChunk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	chunkID, ok := args["chunk_id"].(string)
	if !ok || chunkID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_id parameter is required", map[string]interface{}{
			"param":  "chunk_id",
			"reason": "missing or empty",
		})
	}
	runID := getStringDefault(args, "run_id", "")

	c, err := s.pipeline.Chunk(ctx, runID, chunkID)
	if err != nil {
		return nil, runError(err)
	}

	response := map[string]interface{}{
		"chunk": c,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"running": s.pipeline.Running(),
		"storage": map[string]interface{}{
			"enabled": s.storage != nil,
		},
	}

	if latest, err := s.pipeline.Lookup(ctx, ""); err == nil {
		response["latest_run"] = map[string]interface{}{
			"run_id":       latest.RunID,
			"total_chunks": len(latest.Chunks),
			"cached":       latest.Cached,
		}
	}

	if s.storage != nil {
		status, err := s.storage.GetStatus(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"error": err.Error(),
			})
		}
		lastRun := ""
		if !status.LastRunAt.IsZero() {
			lastRun = status.LastRunAt.Format(time.RFC3339)
		}
		response["storage"] = map[string]interface{}{
			"enabled":                true,
			"runs_count":             status.RunsCount,
			"chunks_count":           status.ChunksCount,
			"files_count":            status.FilesCount,
			"cross_references_count": status.CrossReferencesCount,
			"size_mb":                fmt.Sprintf("%.2f", status.SizeMB),
			"schema_version":         status.SchemaVersion,
			"last_run_at":            lastRun,
			"health": map[string]interface{}{
				"database_accessible": status.Health.DatabaseAccessible,
				"schema_current":      status.Health.SchemaCurrent,
			},
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// runError maps pipeline failures onto MCP error codes
func runError(err error) error {
	var cfgErr *types.ConfigurationError
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return newMCPError(ErrorCodeChunkingInProgress, "chunking already in progress", nil)
	case errors.Is(err, pipeline.ErrRunNotFound):
		return newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, pipeline.ErrChunkNotFound):
		return newMCPError(ErrorCodeChunkNotFound, "chunk not found", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.As(err, &cfgErr):
		return newMCPError(ErrorCodeInvalidParams, "invalid chunking options", map[string]interface{}{
			"param":  cfgErr.Field,
			"value":  cfgErr.Value,
			"reason": cfgErr.Reason,
		})
	case chunker.IsTokenizationError(err):
		return newMCPError(ErrorCodeTokenization, "token counting failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "chunking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
