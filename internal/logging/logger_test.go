package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.NotNil(t, logger.sampler)
}

func TestNewLogger_Outputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Stderr = false
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")

	cfg.OTEL = true
	_, err = NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no OTEL logger provider")

	logger, err := NewLogger(cfg, noop.NewLoggerProvider())
	require.NoError(t, err)
	logger.Info(context.Background(), "bridged only")
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("trace", "console")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	cfg, err = FromSettings("warn", "")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Sampling.Enabled)

	_, err = FromSettings("loud", "json")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = FromSettings("info", "xml")
	assert.ErrorContains(t, err, "format must be")
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Window = 0
	assert.ErrorContains(t, cfg.Validate(), "invalid sampling")

	cfg = NewDefaultConfig()
	cfg.Redaction.Patterns = []string{"("}
	assert.ErrorContains(t, cfg.Validate(), "invalid redaction pattern")
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "mcp.tool.run_command")
	defer span.End()
	ctx = WithSessionID(ctx, "sess_1")
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithTool(ctx, "run_command")

	tl.Info(ctx, "command finished", zap.Int("exit_code", 0))

	tl.AssertLogged(t, zapcore.InfoLevel, "command finished")
	tl.AssertField(t, "command finished", "session.id", "sess_1")
	tl.AssertField(t, "command finished", "request.id", "req-42")
	tl.AssertField(t, "command finished", "tool.name", "run_command")
	tl.AssertField(t, "command finished", "trace_id", span.SpanContext().TraceID().String())
	tl.AssertField(t, "command finished", "exit_code", 0)
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "argv dump")
	tl.Debug(ctx, "debug line")
	tl.Warn(ctx, "warn line")
	tl.Error(ctx, "error line")

	tl.AssertLogged(t, TraceLevel, "argv dump")
	tl.AssertLogged(t, zapcore.DebugLevel, "debug line")
	tl.AssertLogged(t, zapcore.WarnLevel, "warn line")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error line")
	tl.AssertNotLogged(t, zapcore.InfoLevel, "debug line")
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("shell").With(zap.String("component", "executor"))

	child.Info(context.Background(), "spawned")

	tl.AssertField(t, "spawned", "component", "executor")
	entries := tl.FilterMessage("spawned").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shell", entries[0].LoggerName)
}

func TestContextIDs_IgnoreInvalid(t *testing.T) {
	ctx := WithSessionID(context.Background(), "bad id with spaces")
	ctx = WithRequestID(ctx, "")
	assert.Empty(t, SessionIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, ContextFields(ctx))

	ctx = WithSessionID(context.Background(), "mcp:session-1")
	assert.Equal(t, "mcp:session-1", SessionIDFromContext(ctx))
	assert.False(t, ValidID(string(make([]byte, 129))))
}

func TestEnvKeys(t *testing.T) {
	tl := NewTestLogger()
	tl.Debug(context.Background(), "overrides", EnvKeys("env_keys", map[string]string{"TOKEN": "hunter2", "A": "1"}))

	entry := tl.FilterMessage("overrides").All()
	require.Len(t, entry, 1)
	assert.Equal(t, []interface{}{"A", "TOKEN"}, entry[0].ContextMap()["env_keys"])
}

func TestExecution(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "execution finished", Execution("command", "timed_out", -1, 2*time.Second))

	entries := tl.FilterMessage("execution finished").All()
	require.Len(t, entries, 1)
	exec, ok := entries[0].ContextMap()["execution"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "command", exec["kind"])
	assert.Equal(t, "timed_out", exec["outcome"])
	assert.EqualValues(t, -1, exec["exit_code"])
	assert.Equal(t, 2*time.Second, exec["duration"])
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("error")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, lvl)
}
