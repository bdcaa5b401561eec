// Package mcp exposes the shell executor and the file and project tools over
// the Model Context Protocol.
//
// Tools are registered with the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and call internal packages directly. Every tool call is traced, counted and
// logged with its session id, and all text returned to clients is scrubbed
// for secrets. Execution tools share a per-session rate limit.
package mcp
