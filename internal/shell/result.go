package shell

import (
	"strconv"
	"strings"
)

// Result is the outcome of one execution attempt.
type Result struct {
	ReturnCode   int    `json:"return_code"`
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ErrorMessage string `json:"error,omitempty"`
}

// IsSuccess reports whether the command exited with status zero.
func (r Result) IsSuccess() bool {
	return r.ReturnCode == 0
}

// FormatOutput renders the non-empty parts of the result as blank-line
// separated sections. The exit code is included when requested and either the
// command failed or there is no error message that already explains it.
func (r Result) FormatOutput(includeExitCode bool) string {
	parts := make([]string, 0, 4)
	if r.ErrorMessage != "" {
		parts = append(parts, "Error: "+r.ErrorMessage)
	}
	if includeExitCode && (r.ReturnCode != 0 || r.ErrorMessage == "") {
		parts = append(parts, "Exit code: "+strconv.Itoa(r.ReturnCode))
	}
	if r.Stdout != "" {
		parts = append(parts, "STDOUT:\n"+r.Stdout)
	}
	if r.Stderr != "" {
		parts = append(parts, "STDERR:\n"+r.Stderr)
	}
	return strings.Join(parts, "\n\n")
}

func failure(code int, msg string) Result {
	return Result{ReturnCode: code, ErrorMessage: msg}
}
