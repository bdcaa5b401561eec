package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/filesystem"
	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
	"github.com/fyrsmithlabs/shelld/internal/shell"
)

const instrumentationName = "github.com/fyrsmithlabs/shelld/internal/mcp"

// Metrics records per-tool call counts, latency and failures. A nil
// *Metrics drops everything.
type Metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
	active      metric.Int64UpDownCounter
	rateLimited metric.Int64Counter
}

// NewMetrics creates the tool instruments on meter. Instruments that fail
// to register are logged and skipped.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn(context.Background(), "failed to create instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	var err error
	m.invocations, err = meter.Int64Counter("shelld.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations"), metric.WithUnit("{invocation}"))
	warn("invocations_total", err)
	m.duration, err = meter.Float64Histogram("shelld.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency"), metric.WithUnit("s"),
		// Commands run up to the 120s default timeout.
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120))
	warn("duration_seconds", err)
	m.errors, err = meter.Int64Counter("shelld.mcp.tool.errors_total",
		metric.WithDescription("MCP tool calls that failed, by reason"), metric.WithUnit("{error}"))
	warn("errors_total", err)
	m.active, err = meter.Int64UpDownCounter("shelld.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls in flight"), metric.WithUnit("{request}"))
	warn("active_requests", err)
	m.rateLimited, err = meter.Int64Counter("shelld.mcp.tool.rate_limited_total",
		metric.WithDescription("Tool calls rejected by the per-session rate limit"), metric.WithUnit("{request}"))
	warn("rate_limited_total", err)
	return m
}

func toolAttr(tool string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tool", tool))
}

// RecordInvocation counts one finished call. err is what the client saw.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, toolAttr(tool))
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), toolAttr(tool))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("reason", categorizeError(err)),
		))
	}
}

// RecordRateLimited counts a call rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, tool string) {
	if m != nil && m.rateLimited != nil {
		m.rateLimited.Add(ctx, 1, toolAttr(tool))
	}
}

// IncrementActive marks a call as in flight.
func (m *Metrics) IncrementActive(ctx context.Context, tool string) {
	if m != nil && m.active != nil {
		m.active.Add(ctx, 1, toolAttr(tool))
	}
}

// DecrementActive is the counterpart of IncrementActive.
func (m *Metrics) DecrementActive(ctx context.Context, tool string) {
	if m != nil && m.active != nil {
		m.active.Add(ctx, -1, toolAttr(tool))
	}
}

// categorizeError maps an error to a low-cardinality reason label.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, shell.ErrCommandNotAllowed):
		return "command_denied"
	case errors.Is(err, permissions.ErrPathNotAllowed):
		return "path_denied"
	case errors.Is(err, shell.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, filesystem.ErrInvalidPattern), errors.Is(err, shell.ErrMalformedCommand):
		return "validation_error"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "command not allowed") || strings.Contains(errStr, "interpreter not allowed"):
		return "command_denied"
	case strings.Contains(errStr, "not allowed"):
		return "path_denied"
	case strings.Contains(errStr, "validation") || strings.Contains(errStr, "invalid") || strings.Contains(errStr, "required"):
		return "validation_error"
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "does not exist"):
		return "not_found"
	case strings.Contains(errStr, "timed out") || strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "exit code") || strings.Contains(errStr, "exited"):
		return "nonzero_exit"
	default:
		return "internal_error"
	}
}
