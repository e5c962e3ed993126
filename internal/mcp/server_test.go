package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repochunk/internal/config"
	"github.com/dshills/repochunk/internal/pipeline"
	"github.com/dshills/repochunk/pkg/types"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T, withStorage bool) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Tokenizer.Precise = false
	cfg.Storage.Enabled = withStorage
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db", "repochunk.db")

	server, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.go":      "package main\n\nimport \"example.com/app/util\"\n\nfunc main() { util.Run() }\n",
		"util/util.go": "package util\n\n// Run does the work.\nfunc Run() {}\n",
		"README.md":    "# App\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func call(t *testing.T, h handler, name string, args map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := h(context.Background(), request)
	if err != nil {
		return nil, err
	}
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &response))
	return response, nil
}

func errorCode(t *testing.T, err error) int {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	return mcpErr.Code
}

func TestServer_Initialization(t *testing.T) {
	t.Run("without storage", func(t *testing.T) {
		server := newTestServer(t, false)
		assert.NotNil(t, server.mcp)
		assert.NotNil(t, server.pipeline)
		assert.Nil(t, server.storage)
	})

	t.Run("with storage creates directory", func(t *testing.T) {
		server := newTestServer(t, true)
		assert.NotNil(t, server.storage)
		assert.DirExists(t, filepath.Dir(server.cfg.Storage.Path))
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Chunking.Strategy = "bogus"
		_, err := NewServer(cfg, nil)
		assert.Error(t, err)
	})
}

func TestChunkRepository(t *testing.T) {
	server := newTestServer(t, false)
	root := writeRepo(t)

	response, err := call(t, server.handleChunkRepository, "chunk_repository", map[string]interface{}{
		"path":            root,
		"strategy":        "file_based",
		"max_tokens":      float64(1000),
		"include_content": true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, response["run_id"])
	assert.Equal(t, false, response["cached"])

	stats := response["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["files_processed"])
	assert.Equal(t, float64(1), stats["total_chunks"])
	assert.Equal(t, "file_based", stats["strategy"])
	assert.Equal(t, true, stats["fits_in_window"])

	nav := response["navigation"].(map[string]interface{})
	assert.Equal(t, float64(1), nav["total_chunks"])

	chunks := response["chunks"].([]interface{})
	require.Len(t, chunks, 1)
	files := chunks[0].(map[string]interface{})["files"].([]interface{})
	assert.Len(t, files, 3)
}

func TestChunkRepository_Cache(t *testing.T) {
	server := newTestServer(t, true)
	root := writeRepo(t)
	args := map[string]interface{}{"path": root}

	first, err := call(t, server.handleChunkRepository, "chunk_repository", args)
	require.NoError(t, err)
	assert.NotContains(t, first, "chunks")

	second, err := call(t, server.handleChunkRepository, "chunk_repository", args)
	require.NoError(t, err)
	assert.Equal(t, true, second["cached"])
	assert.Equal(t, first["run_id"], second["run_id"])

	args["use_cache"] = false
	third, err := call(t, server.handleChunkRepository, "chunk_repository", args)
	require.NoError(t, err)
	assert.Equal(t, false, third["cached"])
	assert.NotEqual(t, first["run_id"], third["run_id"])
}

func TestChunkRepository_Validation(t *testing.T) {
	server := newTestServer(t, false)
	root := writeRepo(t)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "relative/dir"}, ErrorCodeInvalidParams},
		{"missing directory", map[string]interface{}{"path": filepath.Join(root, "nope")}, ErrorCodePathNotFound},
		{"file not directory", map[string]interface{}{"path": filepath.Join(root, "main.go")}, ErrorCodePathNotFound},
		{"unknown strategy", map[string]interface{}{"path": root, "strategy": "random"}, ErrorCodeInvalidParams},
		{"zero budget", map[string]interface{}{"path": root, "max_tokens": float64(0)}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, server.handleChunkRepository, "chunk_repository", tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.code, errorCode(t, err))
		})
	}
}

func TestRunError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"already running", pipeline.ErrAlreadyRunning, ErrorCodeChunkingInProgress},
		{"run not found", fmt.Errorf("%w: x", pipeline.ErrRunNotFound), ErrorCodeRunNotFound},
		{"chunk not found", fmt.Errorf("%w: x", pipeline.ErrChunkNotFound), ErrorCodeChunkNotFound},
		{"configuration", fmt.Errorf("failed to chunk files: %w", types.NewConfigurationError("overlap", 5, "too big")), ErrorCodeInvalidParams},
		{"tokenization", types.NewTokenizationError("gpt-4", "a.go", errors.New("boom")), ErrorCodeTokenization},
		{"other", errors.New("disk full"), ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, errorCode(t, runError(tt.err)))
		})
	}

	var mcpErr *MCPError
	require.True(t, errors.As(runError(types.NewConfigurationError("overlap", 5, "too big")), &mcpErr))
	assert.Equal(t, "overlap", mcpErr.Data.(map[string]interface{})["param"])
}

func TestCountTokens(t *testing.T) {
	server := newTestServer(t, false)

	response, err := call(t, server.handleCountTokens, "count_tokens", map[string]interface{}{
		"text":  "hello world, this is a test",
		"model": "gpt-4",
	})
	require.NoError(t, err)
	assert.Greater(t, response["tokens"].(float64), float64(0))
	assert.Equal(t, "gpt-4", response["model"])
	assert.Equal(t, float64(128000), response["context_window"])
	assert.Equal(t, true, response["fits"])

	response, err = call(t, server.handleCountTokens, "count_tokens", map[string]interface{}{"text": ""})
	require.NoError(t, err)
	assert.Equal(t, float64(0), response["tokens"])
	assert.Equal(t, server.cfg.Model, response["model"])

	_, err = call(t, server.handleCountTokens, "count_tokens", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
}

func TestGetNavigationAndChunk(t *testing.T) {
	server := newTestServer(t, false)

	_, err := call(t, server.handleGetNavigation, "get_navigation", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeRunNotFound, errorCode(t, err))

	run, err := call(t, server.handleChunkRepository, "chunk_repository", map[string]interface{}{
		"path":       writeRepo(t),
		"strategy":   "directory_based",
		"max_tokens": float64(1000),
	})
	require.NoError(t, err)

	nav, err := call(t, server.handleGetNavigation, "get_navigation", map[string]interface{}{
		"run_id": run["run_id"],
	})
	require.NoError(t, err)
	assert.Equal(t, run["run_id"], nav["run_id"])
	index := nav["navigation"].(map[string]interface{})["chunk_index"].([]interface{})
	require.NotEmpty(t, index)
	assert.Len(t, nav["summaries"], len(index))

	entry := index[0].(map[string]interface{})
	assert.Equal(t, float64(1), entry["chunk_number"])
	chunkID := entry["chunk_id"].(string)

	chunk, err := call(t, server.handleGetChunk, "get_chunk", map[string]interface{}{"chunk_id": chunkID})
	require.NoError(t, err)
	assert.Equal(t, chunkID, chunk["chunk"].(map[string]interface{})["id"])

	_, err = call(t, server.handleGetChunk, "get_chunk", map[string]interface{}{"chunk_id": "missing"})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeChunkNotFound, errorCode(t, err))

	_, err = call(t, server.handleGetChunk, "get_chunk", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))

	_, err = call(t, server.handleGetNavigation, "get_navigation", map[string]interface{}{"run_id": "missing"})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeRunNotFound, errorCode(t, err))
}

func TestGetStatus(t *testing.T) {
	t.Run("without storage", func(t *testing.T) {
		server := newTestServer(t, false)
		response, err := call(t, server.handleGetStatus, "get_status", nil)
		require.NoError(t, err)
		assert.Equal(t, false, response["running"])
		assert.Equal(t, false, response["storage"].(map[string]interface{})["enabled"])
		assert.NotContains(t, response, "latest_run")
	})

	t.Run("with storage", func(t *testing.T) {
		server := newTestServer(t, true)
		_, err := call(t, server.handleChunkRepository, "chunk_repository", map[string]interface{}{"path": writeRepo(t)})
		require.NoError(t, err)

		response, err := call(t, server.handleGetStatus, "get_status", nil)
		require.NoError(t, err)
		store := response["storage"].(map[string]interface{})
		assert.Equal(t, true, store["enabled"])
		assert.Equal(t, float64(1), store["runs_count"])
		assert.Equal(t, float64(3), store["files_count"])
		assert.NotEmpty(t, store["last_run_at"])
		assert.Contains(t, response, "latest_run")
	})
}

func TestValidatePath(t *testing.T) {
	root := writeRepo(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty", "", ErrPathRequired},
		{"relative", "some/dir", ErrPathNotAbsolute},
		{"missing", filepath.Join(root, "missing"), ErrPathNotFound},
		{"file", filepath.Join(root, "README.md"), ErrNotDirectory},
		{"directory", root, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestToolSchemas(t *testing.T) {
	tools := []mcp.Tool{chunkRepositoryTool(), countTokensTool(), getNavigationTool(), getChunkTool(), getStatusTool()}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
		for _, required := range tool.InputSchema.Required {
			assert.Contains(t, tool.InputSchema.Properties, required)
		}
	}
	assert.Equal(t, []string{"chunk_repository", "count_tokens", "get_navigation", "get_chunk", "get_status"}, names)

	strategies := chunkRepositoryTool().InputSchema.Properties["strategy"].(map[string]interface{})["enum"]
	assert.Equal(t, strategyNames(), strategies)
}
