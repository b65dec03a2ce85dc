// Package mcp implements the JSON-RPC 2.0 stdio server that exposes
// diagram rendering to MCP (Model Context Protocol) clients.
//
// The transport is line-delimited JSON on stdin/stdout: one request or
// notification per line, one response line per request. Logging goes to
// the configured slog handler (stderr in the CLI) so stdout carries only
// protocol traffic. Tool failures come back as tool results with isError
// set and a structured, self-describing error body; transport-level
// errors are reserved for malformed JSON-RPC.
package mcp
