package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/repochunk/internal/chunker"
)

func strategyNames() []string {
	names := make([]string, len(chunker.Strategies))
	for i, s := range chunker.Strategies {
		names[i] = string(s)
	}
	return names
}

// chunkRepositoryTool returns the tool definition for chunk_repository
func chunkRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_repository",
		Description: "Split a local repository into ordered chunks that each fit a token budget",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Grouping strategy (defaults to the configured strategy)",
					"enum":        strategyNames(),
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget per chunk (defaults to the configured budget)",
					"minimum":     1,
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Model whose tokenizer and context window apply",
				},
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include every chunk with file contents in the response",
					"default":     false,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, reuse an earlier run over identical files and options",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// countTokensTool returns the tool definition for count_tokens
func countTokensTool() mcp.Tool {
	return mcp.Tool{
		Name:        "count_tokens",
		Description: "Count the tokens of a text for a model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to count",
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Model name (defaults to the configured model)",
				},
			},
			Required: []string{"text"},
		},
	}
}

// getNavigationTool returns the tool definition for get_navigation
func getNavigationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_navigation",
		Description: "Get the navigation index (chunk titles, summaries and cross references) of a run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run id returned by chunk_repository (defaults to the latest run)",
				},
			},
		},
	}
}

// getChunkTool returns the tool definition for get_chunk
func getChunkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunk",
		Description: "Get one chunk with its file contents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "string",
					"description": "Chunk id from the navigation index",
				},
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run id (defaults to the latest run containing the chunk)",
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a run is in progress and storage statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
