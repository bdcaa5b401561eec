package logging

import (
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvKeys logs the names of environment overrides, never their values.
func EnvKeys(key string, env map[string]string) zap.Field {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return zap.Strings(key, keys)
}

// Execution groups how one process run ended under the "execution" key.
func Execution(kind, outcome string, exitCode int, elapsed time.Duration) zap.Field {
	return zap.Object("execution", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("kind", kind)
		enc.AddString("outcome", outcome)
		enc.AddInt("exit_code", exitCode)
		enc.AddDuration("duration", elapsed)
		return nil
	}))
}
