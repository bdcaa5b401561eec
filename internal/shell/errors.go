package shell

import "errors"

var (
	// ErrCommandNotAllowed wraps every policy rejection.
	ErrCommandNotAllowed = errors.New("command not allowed")

	// ErrMalformedCommand is returned for empty input or unbalanced quotes.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrTimeout is returned by a Runner when the deadline expires.
	ErrTimeout = errors.New("execution timed out")

	// ErrSpawn is returned by a Runner when the process cannot be started.
	ErrSpawn = errors.New("failed to start process")
)

// Outcome is the terminal state of one execution.
type Outcome string

const (
	OutcomeRejected   Outcome = "rejected"
	OutcomeCompleted  Outcome = "completed"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeSpawnError Outcome = "spawn_error"
	OutcomeBuiltin    Outcome = "builtin"
	OutcomePanic      Outcome = "unexpected"
)
