package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug and carries full argv dumps.
const TraceLevel = zapcore.Level(-2)

const maxPatternLen = 200

// Config controls how shelld logs.
type Config struct {
	Level  zapcore.Level
	Format string // json or console
	// Service is attached to every entry.
	Service string
	// Stderr writes encoded entries to stderr. Stdout carries the stdio
	// transport and is never written to.
	Stderr bool
	// OTEL bridges entries to the telemetry log provider, when there is one.
	OTEL            bool
	Caller          bool
	StacktraceLevel zapcore.Level
	Sampling        SamplingConfig
	Redaction       RedactionConfig
}

// SamplingConfig bounds how often one session repeats a message. Within a
// window a session logs the first First copies, then every Every-th one.
// Every of zero drops the rest. Errors are never sampled.
type SamplingConfig struct {
	Enabled bool
	Window  time.Duration
	First   int
	Every   int
}

// RedactionConfig names field keys and string patterns hidden from stderr.
type RedactionConfig struct {
	Keys     []string
	Patterns []string
}

// NewDefaultConfig returns the settings used by `shelld serve`.
func NewDefaultConfig() *Config {
	return &Config{
		Level:           zapcore.InfoLevel,
		Format:          "json",
		Service:         "shelld",
		Stderr:          true,
		Caller:          true,
		StacktraceLevel: zapcore.ErrorLevel,
		Sampling: SamplingConfig{
			Enabled: true,
			Window:  time.Second,
			First:   50,
			Every:   20,
		},
		Redaction: RedactionConfig{
			Keys: []string{
				"password", "secret", "token", "api_key", "authorization",
				"credential", "private_key", "stdin", "env",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key\s*[=:]\s*\S+`,
			},
		},
	}
}

// FromSettings builds a config from the level and format in shelld's
// configuration file.
func FromSettings(level, format string) (*Config, error) {
	lvl, err := LevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := NewDefaultConfig()
	cfg.Level = lvl
	if format != "" {
		cfg.Format = format
	}
	// Debug output is asked for line by line.
	cfg.Sampling.Enabled = lvl > zapcore.DebugLevel
	return cfg, cfg.Validate()
}

// LevelFromString parses a zap level name or "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(level)
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stderr && !c.OTEL {
		return errors.New("at least one output must be enabled (stderr or otel)")
	}
	if s := c.Sampling; s.Enabled && (s.Window <= 0 || s.First < 0 || s.Every < 0) {
		return fmt.Errorf("invalid sampling window %s first %d every %d", s.Window, s.First, s.Every)
	}
	for _, p := range c.Redaction.Patterns {
		if len(p) > maxPatternLen {
			return fmt.Errorf("redaction pattern longer than %d characters", maxPatternLen)
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
	}
	return nil
}
