// Package server implements the MCP (Model Context Protocol) server for the
// emblem scorer.
//
// The server exposes edge maps, scoring, classification and dataset
// evaluation as tools, so an MCP client can inspect why an image does or does
// not match the emblem template.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load image and get metadata
//   - emblem_edge_detect: Binary edge map with fixed or adaptive thresholds
//   - emblem_score: Multi-scale template score, verdict and best match box
//   - emblem_classify: Verdict for a given score
//   - emblem_evaluate: Statistics and confusion counts over labeled directories
//
// # Caching
//
// Loaded images are cached by path for the lifetime of the process. Each
// template path gets one prepared scorer, built on first use from the
// configured scorer settings.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
