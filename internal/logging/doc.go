// Package logging is shelld's structured logger.
//
// Logs go to stderr, since stdout carries the MCP stdio transport, and
// optionally to the OpenTelemetry log bridge. Each method takes a context
// and picks up the session, request and tool ids the MCP layer stored there:
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	ctx = logging.WithTool(ctx, "run_command")
//	logger.Info(ctx, "execution finished",
//	    logging.Execution("command", "completed", 0, elapsed))
//
// Repeated messages are sampled per session. Keys such as "env" or "token"
// and bearer-style values are replaced with [REDACTED] before they are
// written.
package logging
