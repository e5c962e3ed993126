// Package mcp implements the Model Context Protocol (MCP) server for repochunk.
//
// The MCP server exposes five tools to AI coding assistants:
//   - chunk_repository: Split a local repository into token-bounded chunks
//   - count_tokens: Count the tokens of a text for a model
//   - get_navigation: Read the navigation index of a run
//   - get_chunk: Read one chunk with its file contents
//   - get_status: Report run and storage state
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	repochunk serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: chunk_repository
//
//	Request:
//	{
//	  "name": "chunk_repository",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "strategy": "dependency_aware",
//	    "max_tokens": 100000,
//	    "model": "gpt-4o",
//	    "include_content": false
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "5b0c...",
//	  "cached": false,
//	  "statistics": {
//	    "files_processed": 247,
//	    "total_chunks": 4,
//	    "total_tokens": 351220,
//	    "model_limit": 128000,
//	    "fits_in_window": false
//	  },
//	  "navigation": {"total_chunks": 4, "chunk_index": [...], "cross_references": [...]}
//	}
//
// Chunk contents are only returned with include_content; otherwise clients
// page through chunks with get_chunk.
//
// # Tool: get_navigation and get_chunk
//
// Both take an optional run_id. Without it the latest run of this server is
// used; with storage enabled, earlier runs are loaded from the database.
//
// # Error Handling
//
// Errors are returned as MCPError values carrying a JSON-RPC code and data:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "invalid chunking options",
//	    "data": {"param": "overlap", "value": 200000, "reason": "must be in [0, 100000)"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments or options)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Path not found or not a directory
//   - -32002: Chunking in progress
//   - -32003: Run not found
//   - -32004: Chunk not found
//   - -32005: Token counting failed
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
package mcp
