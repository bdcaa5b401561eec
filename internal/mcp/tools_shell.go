package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/shelld/internal/shell"
)

// ===== EXECUTION TOOLS =====

type runCommandInput struct {
	Command       string            `json:"command" jsonschema:"Command line to execute"`
	Cwd           string            `json:"cwd,omitempty" jsonschema:"Working directory; defaults to the session's current directory"`
	Env           map[string]string `json:"env,omitempty" jsonschema:"Extra environment variables for this command"`
	Timeout       float64           `json:"timeout,omitempty" jsonschema:"Timeout in seconds (default: 60)"`
	UseLoginShell *bool             `json:"use_login_shell,omitempty" jsonschema:"Run through the user's login shell so profile settings apply (default: true)"`
	SessionID     string            `json:"session_id,omitempty" jsonschema:"Session identifier; cd changes persist per session"`
}

type runScriptInput struct {
	Script        string            `json:"script" jsonschema:"Script source to run"`
	Interpreter   string            `json:"interpreter,omitempty" jsonschema:"Interpreter that reads the script on stdin (default: bash)"`
	Cwd           string            `json:"cwd,omitempty" jsonschema:"Working directory; defaults to the session's current directory"`
	Env           map[string]string `json:"env,omitempty" jsonschema:"Extra environment variables for this script"`
	Timeout       float64           `json:"timeout,omitempty" jsonschema:"Timeout in seconds (default: 60)"`
	UseLoginShell *bool             `json:"use_login_shell,omitempty" jsonschema:"Run through the user's login shell (default: true)"`
	SessionID     string            `json:"session_id,omitempty" jsonschema:"Session identifier"`
}

type scriptToolInput struct {
	Language      string            `json:"language" jsonschema:"Script language, see script_languages"`
	Script        string            `json:"script" jsonschema:"Script source; written to a temporary file that is removed afterwards"`
	Args          []string          `json:"args,omitempty" jsonschema:"Arguments passed to the script"`
	Cwd           string            `json:"cwd,omitempty" jsonschema:"Working directory; defaults to the session's current directory"`
	Env           map[string]string `json:"env,omitempty" jsonschema:"Extra environment variables for this script"`
	Timeout       float64           `json:"timeout,omitempty" jsonschema:"Timeout in seconds (default: 60)"`
	UseLoginShell *bool             `json:"use_login_shell,omitempty" jsonschema:"Run through the user's login shell (default: true)"`
	SessionID     string            `json:"session_id,omitempty" jsonschema:"Session identifier"`
}

// commandOutput is the structured result of every execution tool.
type commandOutput struct {
	ReturnCode int    `json:"return_code" jsonschema:"Process exit status; -1 on timeout or cancellation"`
	Stdout     string `json:"stdout" jsonschema:"Captured standard output"`
	Stderr     string `json:"stderr" jsonschema:"Captured standard error"`
	Error      string `json:"error,omitempty" jsonschema:"Why the execution failed, if it did"`
	SessionID  string `json:"session_id" jsonschema:"Session the command ran in"`
	WorkingDir string `json:"working_dir" jsonschema:"Session working directory after the call"`
}

type scriptLanguagesInput struct{}

type scriptLanguagesOutput struct {
	Languages []string `json:"languages" jsonschema:"Languages accepted by script_tool"`
}

type sessionInfoInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session identifier"`
}

type sessionUpdateInput struct {
	SessionID string            `json:"session_id,omitempty" jsonschema:"Session identifier"`
	Cwd       string            `json:"cwd,omitempty" jsonschema:"New working directory; must exist and be allowed"`
	SetEnv    map[string]string `json:"set_env,omitempty" jsonschema:"Environment variables applied to every later command in the session"`
	UnsetEnv  []string          `json:"unset_env,omitempty" jsonschema:"Session environment variables to remove"`
	Reset     bool              `json:"reset,omitempty" jsonschema:"Restore the initial directory and clear session environment before other changes"`
}

type sessionOutput struct {
	SessionID        string   `json:"session_id" jsonschema:"Session identifier"`
	WorkingDir       string   `json:"working_dir" jsonschema:"Current working directory"`
	EnvKeys          []string `json:"env_keys" jsonschema:"Names of session environment variables"`
	Shell            string   `json:"shell" jsonschema:"Shell used for login-shell execution"`
	AllowedPaths     []string `json:"allowed_paths" jsonschema:"Roots commands and files may use"`
	ExcludedCommands []string `json:"excluded_commands" jsonschema:"Commands that are refused"`
	ActiveSessions   int      `json:"active_sessions" jsonschema:"Number of sessions known to the server"`
}

func (s *Server) registerShellTools() error {
	if err := addTool(s, &ToolMetadata{
		Name:        "run_command",
		Description: "Execute a shell command. Commands on the denylist are refused and shell operators are rejected unless enabled. 'cd <dir>' changes the session's working directory without spawning a process. Returns stdout on success, otherwise the error, exit code, stdout and stderr.",
		Category:    CategoryExecution,
		RateLimited: true,
		Keywords:    []string{"shell", "exec", "bash", "terminal", "cd"},
	}, s.handleRunCommand); err != nil {
		return err
	}

	if err := addTool(s, &ToolMetadata{
		Name:        "run_script",
		Description: "Run a script by piping it to an interpreter (bash by default). Fish scripts are passed base64 encoded to preserve quoting.",
		Category:    CategoryExecution,
		RateLimited: true,
		Keywords:    []string{"script", "interpreter", "stdin", "fish", "bash"},
	}, s.handleRunScript); err != nil {
		return err
	}

	if err := addTool(s, &ToolMetadata{
		Name:        "script_tool",
		Description: "Write a script in the given language to a temporary file, run it with optional arguments and remove the file. See script_languages for supported languages.",
		Category:    CategoryExecution,
		RateLimited: true,
		Keywords:    []string{"python", "node", "ruby", "perl", "script", "file"},
	}, s.handleScriptTool); err != nil {
		return err
	}

	if err := addTool(s, &ToolMetadata{
		Name:        "script_languages",
		Description: "List the languages accepted by script_tool.",
		Category:    CategoryExecution,
		Keywords:    []string{"languages", "interpreters"},
	}, s.handleScriptLanguages); err != nil {
		return err
	}

	if err := addTool(s, &ToolMetadata{
		Name:        "session_info",
		Description: "Show a session's working directory, environment variable names, shell and execution policy.",
		Category:    CategorySession,
		Keywords:    []string{"pwd", "cwd", "environment", "policy"},
	}, s.handleSessionInfo); err != nil {
		return err
	}

	return addTool(s, &ToolMetadata{
		Name:        "session_update",
		Description: "Change a session's working directory or environment variables, or reset it to its initial state.",
		Category:    CategorySession,
		Keywords:    []string{"cd", "env", "export", "reset"},
	}, s.handleSessionUpdate)
}

func (s *Server) handleRunCommand(ctx context.Context, req *mcp.CallToolRequest, args runCommandInput) (*mcp.CallToolResult, commandOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "run_command", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	if strings.TrimSpace(args.Command) == "" {
		toolErr = errors.New("command is required")
		return c.fail(toolErr), commandOutput{SessionID: sessionID}, nil
	}
	if toolErr = c.allow(); toolErr != nil {
		return c.fail(toolErr), commandOutput{SessionID: sessionID}, nil
	}

	res := s.executor.ExecuteCommand(c.ctx, shell.CommandRequest{
		Command:       args.Command,
		Cwd:           args.Cwd,
		Env:           args.Env,
		Timeout:       secondsToDuration(args.Timeout),
		UseLoginShell: boolOr(args.UseLoginShell, true),
		SessionID:     sessionID,
	})
	result, out := c.commandResult(res)
	toolErr = resultError(res)
	return result, out, nil
}

func (s *Server) handleRunScript(ctx context.Context, req *mcp.CallToolRequest, args runScriptInput) (*mcp.CallToolResult, commandOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "run_script", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	if toolErr = c.allow(); toolErr != nil {
		return c.fail(toolErr), commandOutput{SessionID: sessionID}, nil
	}

	res := s.executor.ExecuteScript(c.ctx, shell.ScriptRequest{
		Script:        args.Script,
		Interpreter:   args.Interpreter,
		Cwd:           args.Cwd,
		Env:           args.Env,
		Timeout:       secondsToDuration(args.Timeout),
		UseLoginShell: boolOr(args.UseLoginShell, true),
		SessionID:     sessionID,
	})
	result, out := c.commandResult(res)
	toolErr = resultError(res)
	return result, out, nil
}

func (s *Server) handleScriptTool(ctx context.Context, req *mcp.CallToolRequest, args scriptToolInput) (*mcp.CallToolResult, commandOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "script_tool", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	if strings.TrimSpace(args.Language) == "" {
		toolErr = fmt.Errorf("language is required (one of: %s)", strings.Join(s.executor.AvailableLanguages(), ", "))
		return c.fail(toolErr), commandOutput{SessionID: sessionID}, nil
	}
	if toolErr = c.allow(); toolErr != nil {
		return c.fail(toolErr), commandOutput{SessionID: sessionID}, nil
	}

	res := s.executor.ExecuteScriptFromFile(c.ctx, shell.FileScriptRequest{
		Script:        args.Script,
		Language:      args.Language,
		Args:          args.Args,
		Cwd:           args.Cwd,
		Env:           args.Env,
		Timeout:       secondsToDuration(args.Timeout),
		UseLoginShell: boolOr(args.UseLoginShell, true),
		SessionID:     sessionID,
	})
	result, out := c.commandResult(res)
	toolErr = resultError(res)
	return result, out, nil
}

func (s *Server) handleScriptLanguages(ctx context.Context, _ *mcp.CallToolRequest, _ scriptLanguagesInput) (*mcp.CallToolResult, scriptLanguagesOutput, error) {
	c := s.begin(ctx, "script_languages", "")
	defer c.end(nil)

	langs := s.executor.AvailableLanguages()
	return c.text("Supported languages: "+strings.Join(langs, ", "), false), scriptLanguagesOutput{Languages: langs}, nil
}

func (s *Server) handleSessionInfo(ctx context.Context, req *mcp.CallToolRequest, args sessionInfoInput) (*mcp.CallToolResult, sessionOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "session_info", sessionID)
	defer c.end(nil)

	out := s.sessionSnapshot(sessionID)
	return c.text(formatSession(out), false), out, nil
}

func (s *Server) handleSessionUpdate(ctx context.Context, req *mcp.CallToolRequest, args sessionUpdateInput) (*mcp.CallToolResult, sessionOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "session_update", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	sess := s.sessions.Get(sessionID)
	if args.Reset {
		sess.Reset()
	}
	if args.Cwd != "" {
		res := s.executor.ExecuteCommand(c.ctx, shell.CommandRequest{
			Command:   "cd " + shell.Quote(args.Cwd),
			SessionID: sessionID,
		})
		if toolErr = resultError(res); toolErr != nil {
			return c.text(res.FormatOutput(false), true), s.sessionSnapshot(sessionID), nil
		}
	}
	for k, v := range args.SetEnv {
		if k == "" || strings.Contains(k, "=") {
			toolErr = fmt.Errorf("invalid environment variable name %q", k)
			return c.fail(toolErr), s.sessionSnapshot(sessionID), nil
		}
		sess.SetEnv(k, v)
	}
	for _, k := range args.UnsetEnv {
		sess.UnsetEnv(k)
	}

	out := s.sessionSnapshot(sessionID)
	return c.text(formatSession(out), false), out, nil
}

// commandResult renders an execution result: raw stdout on success,
// the formatted failure otherwise. Both forms are scrubbed.
func (c *call) commandResult(res shell.Result) (*mcp.CallToolResult, commandOutput) {
	out := commandOutput{
		ReturnCode: res.ReturnCode,
		Stdout:     c.scrub(res.Stdout),
		Stderr:     c.scrub(res.Stderr),
		Error:      c.scrub(res.ErrorMessage),
		SessionID:  c.sessionID,
		WorkingDir: c.s.sessions.WorkingDir(c.sessionID),
	}
	if res.IsSuccess() && res.ErrorMessage == "" {
		return c.text(res.Stdout, false), out
	}
	return c.text(res.FormatOutput(true), true), out
}

func (s *Server) sessionSnapshot(id string) sessionOutput {
	sess := s.sessions.Get(id)
	env := sess.Env()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return sessionOutput{
		SessionID:        sess.ID(),
		WorkingDir:       sess.WorkingDir(),
		EnvKeys:          keys,
		Shell:            s.executor.Shell(),
		AllowedPaths:     s.paths.AllowedPaths(),
		ExcludedCommands: s.executor.ExcludedCommands(),
		ActiveSessions:   s.sessions.Len(),
	}
}

func formatSession(out sessionOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", out.SessionID)
	fmt.Fprintf(&b, "Working directory: %s\n", out.WorkingDir)
	fmt.Fprintf(&b, "Shell: %s\n", out.Shell)
	if len(out.EnvKeys) > 0 {
		fmt.Fprintf(&b, "Environment: %s\n", strings.Join(out.EnvKeys, ", "))
	}
	fmt.Fprintf(&b, "Allowed paths: %s\n", strings.Join(out.AllowedPaths, ", "))
	fmt.Fprintf(&b, "Excluded commands: %s", strings.Join(out.ExcludedCommands, ", "))
	return b.String()
}

// resultError converts a failed execution into an error for metrics and spans.
func resultError(res shell.Result) error {
	switch {
	case res.ErrorMessage != "":
		return errors.New(res.ErrorMessage)
	case !res.IsSuccess():
		return fmt.Errorf("exit code %d", res.ReturnCode)
	default:
		return nil
	}
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
