package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/filesystem"
	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
	"github.com/fyrsmithlabs/shelld/internal/project"
	"github.com/fyrsmithlabs/shelld/internal/secrets"
	"github.com/fyrsmithlabs/shelld/internal/session"
	"github.com/fyrsmithlabs/shelld/internal/shell"
	"github.com/fyrsmithlabs/shelld/internal/telemetry"
)

// Server is the shelld MCP server.
type Server struct {
	mcp      *mcp.Server
	executor *shell.Executor
	sessions *session.Registry
	paths    *permissions.Manager
	files    *filesystem.Service
	scrubber secrets.Scrubber
	registry *ToolRegistry
	metrics  *Metrics
	limiter  *sessionLimiter
	tracer   trace.Tracer
	project  project.Options
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "shelld")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *logging.Logger

	// Telemetry supplies the tracer and meter. Nil uses the otel globals.
	Telemetry *telemetry.Telemetry

	// RateLimit is the sustained number of execution tool calls per second
	// allowed for one session. Zero disables limiting.
	RateLimit float64

	// RateBurst is the number of execution calls a session may make at once.
	RateBurst int

	// Project bounds project_analyze walks.
	Project project.Options
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:      "shelld",
		Version:   "dev",
		Logger:    logging.NewNop(),
		RateLimit: 5,
		RateBurst: 10,
		Project:   project.DefaultOptions,
	}
}

// NewServer creates a new MCP server and registers every tool.
func NewServer(
	cfg *Config,
	executor *shell.Executor,
	sessions *session.Registry,
	paths *permissions.Manager,
	files *filesystem.Service,
	scrubber secrets.Scrubber,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if paths == nil {
		return nil, fmt.Errorf("permission manager is required")
	}
	if files == nil {
		return nil, fmt.Errorf("filesystem service is required")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber is required")
	}

	name := cfg.Name
	if name == "" {
		name = "shelld"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		executor: executor,
		sessions: sessions,
		paths:    paths,
		files:    files,
		scrubber: scrubber,
		registry: NewToolRegistry(),
		metrics:  NewMetrics(cfg.Telemetry.Meter(instrumentationName), logger),
		limiter:  newSessionLimiter(cfg.RateLimit, cfg.RateBurst),
		tracer:   cfg.Telemetry.Tracer(instrumentationName),
		project:  cfg.Project,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Registry returns the tool metadata registry.
func (s *Server) Registry() *ToolRegistry { return s.registry }

// SessionCount returns the number of sessions seen so far.
func (s *Server) SessionCount() int { return s.sessions.Len() }

// ToolNames returns the registered tool names.
func (s *Server) ToolNames() []string { return s.registry.ListNames() }

// Run serves MCP on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport",
		zap.Int("tools", s.registry.Count()))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// SSEHandler returns an http.Handler serving MCP over server-sent events.
func (s *Server) SSEHandler() http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

func (s *Server) registerTools() error {
	register := []func() error{
		s.registerShellTools,
		s.registerFilesystemTools,
		s.registerProjectTools,
		s.registerDiscoveryTools,
	}
	for _, fn := range register {
		if err := fn(); err != nil {
			return err
		}
	}
	s.logger.Debug(context.Background(), "registered MCP tools",
		zap.Strings("tools", s.registry.ListNames()))
	return nil
}

// addTool records metadata and registers the handler with the SDK.
func addTool[In, Out any](s *Server, meta *ToolMetadata, handler mcp.ToolHandlerFor[In, Out]) error {
	if err := s.registry.Register(meta); err != nil {
		return err
	}
	mcp.AddTool(s.mcp, &mcp.Tool{Name: meta.Name, Description: meta.Description}, handler)
	return nil
}

// call is the per-invocation bookkeeping shared by every tool handler.
type call struct {
	s         *Server
	ctx       context.Context
	tool      string
	sessionID string
	start     time.Time
	span      trace.Span
}

// begin starts the span, metrics and log context for one tool call.
// sessionID is the already resolved session, or "" for tools without one.
func (s *Server) begin(ctx context.Context, tool, sessionID string) *call {
	ctx = logging.WithTool(ctx, tool)
	ctx = logging.WithRequestID(ctx, uuid.NewString())
	if sessionID != "" {
		ctx = logging.WithSessionID(ctx, sessionID)
	}

	ctx, span := s.tracer.Start(ctx, "mcp.tool."+tool, trace.WithAttributes(
		attribute.String("tool.name", tool),
		attribute.String("session.id", sessionID),
	))
	s.metrics.IncrementActive(ctx, tool)
	s.logger.Debug(ctx, "tool call started")

	return &call{s: s, ctx: ctx, tool: tool, sessionID: sessionID, start: time.Now(), span: span}
}

// end closes the call. err is the failure reported to the client, if any.
func (c *call) end(err error) {
	elapsed := time.Since(c.start)
	c.s.metrics.DecrementActive(c.ctx, c.tool)
	c.s.metrics.RecordInvocation(c.ctx, c.tool, elapsed, err)

	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, categorizeError(err))
		c.s.logger.Info(c.ctx, "tool call failed",
			zap.Duration("duration", elapsed), zap.String("reason", categorizeError(err)))
	} else {
		c.s.logger.Debug(c.ctx, "tool call completed", zap.Duration("duration", elapsed))
	}
	c.span.End()
}

// allow applies the session rate limit.
func (c *call) allow() error {
	if c.s.limiter.Allow(c.sessionID) {
		return nil
	}
	c.s.metrics.RecordRateLimited(c.ctx, c.tool)
	return fmt.Errorf("%w for session %s", errRateLimited, c.sessionID)
}

// scrub redacts secrets from text and logs which rules fired.
func (c *call) scrub(text string) string {
	res := c.s.scrubber.Scrub(text)
	if res.Redacted() {
		c.s.logger.Info(c.ctx, "redacted secrets from tool output",
			zap.Strings("rules", res.RuleIDs()), zap.Int("findings", len(res.Findings)))
		c.span.SetAttributes(attribute.Int("secrets.redacted", len(res.Findings)))
	}
	return res.Text
}

// text builds a scrubbed single-text result.
func (c *call) text(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: c.scrub(text)}},
		IsError: isError,
	}
}

// fail reports err to the client as a tool error.
func (c *call) fail(err error) *mcp.CallToolResult {
	return c.text("Error: "+err.Error(), true)
}

// resolveSessionID picks the explicit id, then the transport session id,
// then the default session.
func resolveSessionID(req *mcp.CallToolRequest, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if req != nil && req.Session != nil {
		if id := req.Session.ID(); id != "" {
			return id
		}
	}
	return session.DefaultID
}
