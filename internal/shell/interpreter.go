package shell

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// ScriptJob describes a script to be fed to an interpreter.
type ScriptJob struct {
	Interpreter   string
	Script        string
	Shell         string
	UseLoginShell bool
}

// Strategy turns a script job into a process invocation.
type Strategy func(job ScriptJob) Invocation

// DefaultStrategies holds interpreters that cannot take a script on stdin.
func DefaultStrategies() map[string]Strategy {
	return map[string]Strategy{
		"fish": fishStrategy,
	}
}

// interpreterName is the program name of an interpreter string like "python3 -u".
func interpreterName(interpreter string) string {
	fields := strings.Fields(interpreter)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

// stdinStrategy pipes the script to the interpreter's standard input.
func stdinStrategy(job ScriptJob) Invocation {
	if job.UseLoginShell {
		return Invocation{
			Path:  job.Shell,
			Args:  ShellArgs(job.Shell, job.Interpreter),
			Stdin: job.Script,
		}
	}
	fields := strings.Fields(job.Interpreter)
	return Invocation{
		Path:  fields[0],
		Args:  fields[1:],
		Stdin: job.Script,
	}
}

// fishStrategy avoids fish's unreliable handling of piped stdin in
// non-interactive mode: the script travels base64 encoded inside the command
// line and is decoded back into a fresh fish.
func fishStrategy(job ScriptJob) Invocation {
	encoded := base64.StdEncoding.EncodeToString([]byte(job.Script))
	inner := "echo " + encoded + " | base64 -d | " + job.Interpreter

	if job.UseLoginShell {
		return Invocation{
			Path: job.Shell,
			Args: ShellArgs(job.Shell, job.Interpreter+" -c "+Quote(inner)),
		}
	}
	fields := strings.Fields(job.Interpreter)
	return Invocation{
		Path: fields[0],
		Args: append(fields[1:], "-c", inner),
	}
}
