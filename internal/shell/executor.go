package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
	"github.com/fyrsmithlabs/shelld/internal/session"
)

// DefaultTimeout bounds an execution when neither the request nor the
// config sets one.
const DefaultTimeout = 60 * time.Second

const defaultInterpreter = "bash"

// PathChecker reports whether a filesystem path may be used.
type PathChecker interface {
	Check(path string) error
}

// Config configures an Executor.
type Config struct {
	ExcludedCommands []string
	AllowOperators   bool
	DefaultTimeout   time.Duration
	MaxOutputBytes   int
}

// CommandRequest asks for one command line to be run.
type CommandRequest struct {
	Command       string
	Cwd           string
	Env           map[string]string
	Timeout       time.Duration
	UseLoginShell bool
	SessionID     string
}

// ScriptRequest asks for a script to be fed to an interpreter.
type ScriptRequest struct {
	Script        string
	Interpreter   string
	Cwd           string
	Env           map[string]string
	Timeout       time.Duration
	UseLoginShell bool
	SessionID     string
}

// FileScriptRequest asks for a script to be written to a temporary file and
// run by the interpreter registered for Language.
type FileScriptRequest struct {
	Script        string
	Language      string
	Args          []string
	Cwd           string
	Env           map[string]string
	Timeout       time.Duration
	UseLoginShell bool
	SessionID     string
}

// Executor validates and runs commands and scripts.
type Executor struct {
	paths      PathChecker
	sessions   *session.Registry
	policy     *Policy
	runner     Runner
	shell      string
	strategies map[string]Strategy
	languages  map[string]Language
	timeout    time.Duration
	tempDir    string
	logger     *logging.Logger
	metrics    *Metrics
}

// Option customizes an Executor.
type Option func(*Executor)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithShell fixes the shell used for login-shell execution.
func WithShell(path string) Option {
	return func(e *Executor) { e.shell = path }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTempDir sets where script files are written.
func WithTempDir(dir string) Option {
	return func(e *Executor) { e.tempDir = dir }
}

// WithStrategy registers a special interpreter strategy.
func WithStrategy(name string, s Strategy) Option {
	return func(e *Executor) { e.strategies[name] = s }
}

// WithLanguage registers or overrides a script language.
func WithLanguage(lang Language) Option {
	return func(e *Executor) { e.languages[strings.ToLower(lang.Name)] = lang }
}

// NewExecutor creates an Executor. Working directories are checked against
// paths; session state lives in sessions.
func NewExecutor(cfg Config, paths PathChecker, sessions *session.Registry, opts ...Option) *Executor {
	e := &Executor{
		paths:      paths,
		sessions:   sessions,
		policy:     NewPolicy(cfg.ExcludedCommands, cfg.AllowOperators),
		strategies: DefaultStrategies(),
		languages:  make(map[string]Language, len(DefaultLanguages)),
		timeout:    cfg.DefaultTimeout,
		logger:     logging.NewNop(),
	}
	for name, lang := range DefaultLanguages {
		e.languages[name] = lang
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = &ProcessRunner{MaxOutputBytes: cfg.MaxOutputBytes}
	}
	if e.shell == "" {
		e.shell = DetectShell()
	}
	return e
}

// Shell returns the shell used for login-shell execution.
func (e *Executor) Shell() string { return e.shell }

// AllowCommand removes name from the denylist.
func (e *Executor) AllowCommand(name string) { e.policy.Allow(name) }

// DenyCommand adds name to the denylist.
func (e *Executor) DenyCommand(name string) { e.policy.Deny(name) }

// ExcludedCommands returns the denylist in sorted order.
func (e *Executor) ExcludedCommands() []string { return e.policy.Excluded() }

// IsCommandAllowed reports whether command passes the policy.
func (e *Executor) IsCommandAllowed(command string) bool {
	return e.CheckCommand(command) == nil
}

// CheckCommand is IsCommandAllowed with a reason.
func (e *Executor) CheckCommand(command string) error {
	_, err := e.policy.Check(command)
	return err
}

// AvailableLanguages returns the names accepted by ExecuteScriptFromFile.
func (e *Executor) AvailableLanguages() []string {
	return languageNames(e.languages)
}

// ExecuteCommand runs one command line.
func (e *Executor) ExecuteCommand(ctx context.Context, req CommandRequest) (res Result) {
	const kind = "command"
	defer e.recoverPanic(ctx, kind, &res)

	cmd, err := e.policy.Check(req.Command)
	if err != nil {
		return e.rejected(ctx, kind, "Command not allowed: "+req.Command+" ("+reasonOf(err)+")", err)
	}

	sess := e.sessionFor(req.SessionID)
	if sess != nil && cmd.IsChangeDir() {
		return e.changeDir(ctx, sess, cmd)
	}

	dir, failed := e.workingDir(ctx, kind, req.Cwd, sess)
	if failed != nil {
		return *failed
	}

	inv := Invocation{
		Dir:     dir,
		Env:     e.environ(ctx, sess, req.Env),
		Timeout: e.timeoutFor(req.Timeout),
	}
	if cmd.HasOperators() || req.UseLoginShell {
		inv.Path, inv.Args = e.shell, ShellArgs(e.shell, req.Command)
	} else {
		inv.Path, inv.Args = cmd.Words[0], cmd.Words[1:]
	}

	return e.run(ctx, kind, inv, fmt.Sprintf("Command timed out after %s seconds: %s", seconds(inv.Timeout), req.Command))
}

// ExecuteScript feeds script to interpreter. Interpreters with a registered
// strategy (fish) are handled by it; all others read the script on stdin.
func (e *Executor) ExecuteScript(ctx context.Context, req ScriptRequest) (res Result) {
	const kind = "script"
	defer e.recoverPanic(ctx, kind, &res)

	interpreter := strings.TrimSpace(req.Interpreter)
	if interpreter == "" {
		interpreter = defaultInterpreter
	}
	if err := e.checkInterpreter(interpreter); err != nil {
		return e.rejected(ctx, kind, "Interpreter not allowed: "+interpreter+" ("+reasonOf(err)+")", err)
	}

	sess := e.sessionFor(req.SessionID)
	dir, failed := e.workingDir(ctx, kind, req.Cwd, sess)
	if failed != nil {
		return *failed
	}

	strategy, ok := e.strategies[interpreterName(interpreter)]
	if !ok {
		strategy = stdinStrategy
	}
	inv := strategy(ScriptJob{
		Interpreter:   interpreter,
		Script:        req.Script,
		Shell:         e.shell,
		UseLoginShell: req.UseLoginShell,
	})
	inv.Dir = dir
	inv.Env = e.environ(ctx, sess, req.Env)
	inv.Timeout = e.timeoutFor(req.Timeout)

	return e.run(ctx, kind, inv, fmt.Sprintf("Script execution timed out after %s seconds", seconds(inv.Timeout)))
}

// ExecuteScriptFromFile writes script to a temporary file named with the
// language's extension, runs it and removes the file on every path.
func (e *Executor) ExecuteScriptFromFile(ctx context.Context, req FileScriptRequest) (res Result) {
	const kind = "script_file"
	defer e.recoverPanic(ctx, kind, &res)

	lang, ok := lookupLanguage(e.languages, req.Language)
	if !ok {
		msg := fmt.Sprintf("Unsupported language: %s. Supported languages: %s",
			req.Language, strings.Join(e.AvailableLanguages(), ", "))
		return e.rejected(ctx, kind, msg, nil)
	}
	if err := e.checkInterpreter(lang.Interpreter); err != nil {
		return e.rejected(ctx, kind, "Interpreter not allowed: "+lang.Interpreter+" ("+reasonOf(err)+")", err)
	}

	sess := e.sessionFor(req.SessionID)
	dir, failed := e.workingDir(ctx, kind, req.Cwd, sess)
	if failed != nil {
		return *failed
	}

	path, err := writeTempScript(e.tempDir, lang.Extension, req.Script)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				e.logger.Warn(ctx, "failed to remove script file", zap.String("path", path), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		e.metrics.record(kind, OutcomeSpawnError)
		return failure(1, "Error executing command: "+err.Error())
	}

	inv := Invocation{
		Dir:     dir,
		Env:     e.environ(ctx, sess, req.Env),
		Timeout: e.timeoutFor(req.Timeout),
	}
	if req.UseLoginShell {
		words := make([]string, 0, len(req.Args)+2)
		words = append(words, lang.Interpreter, Quote(path))
		for _, arg := range req.Args {
			words = append(words, Quote(arg))
		}
		inv.Path, inv.Args = e.shell, ShellArgs(e.shell, strings.Join(words, " "))
	} else {
		inv.Path = lang.Interpreter
		inv.Args = append([]string{path}, req.Args...)
	}

	return e.run(ctx, kind, inv, fmt.Sprintf("Script execution timed out after %s seconds", seconds(inv.Timeout)))
}

// changeDir handles a bare "cd" against session state without spawning.
func (e *Executor) changeDir(ctx context.Context, sess *session.Session, cmd Command) Result {
	target := "~"
	if len(cmd.Words) == 2 {
		target = cmd.Words[1]
	}
	expanded, err := permissions.ExpandHome(target)
	if err != nil {
		return failure(1, "Error executing command: "+err.Error())
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(sess.WorkingDir(), expanded)
	}
	dir := filepath.Clean(expanded)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return e.rejected(ctx, "command", "Directory does not exist: "+dir, err)
	}
	if err := e.paths.Check(dir); err != nil {
		return e.rejected(ctx, "command", "Directory not allowed: "+dir, err)
	}
	if err := sess.SetWorkingDir(dir); err != nil {
		return failure(1, "Error executing command: "+err.Error())
	}

	e.logger.Debug(ctx, "session directory changed", zap.String("dir", dir))
	e.metrics.record("command", OutcomeBuiltin)
	return Result{ReturnCode: 0}
}

// workingDir resolves the effective directory (explicit, then session, then
// default) and verifies it is allowed and exists.
func (e *Executor) workingDir(ctx context.Context, kind, cwd string, sess *session.Session) (string, *Result) {
	base := e.sessions.DefaultDir()
	if sess != nil {
		base = sess.WorkingDir()
	}
	dir := base
	if cwd != "" {
		expanded, err := permissions.ExpandHome(cwd)
		if err != nil {
			res := failure(1, "Error executing command: "+err.Error())
			return "", &res
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(base, expanded)
		}
		dir = filepath.Clean(expanded)
	}

	if err := e.paths.Check(dir); err != nil {
		res := e.rejected(ctx, kind, "Working directory not allowed: "+dir, err)
		return "", &res
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		res := e.rejected(ctx, kind, "Working directory does not exist: "+dir, err)
		return "", &res
	}
	return dir, nil
}

func (e *Executor) checkInterpreter(interpreter string) error {
	cmd, err := e.policy.Check(interpreter)
	if err != nil {
		return err
	}
	if cmd.HasOperators() {
		return reject(ErrCommandNotAllowed, "interpreter may not contain shell operators")
	}
	return nil
}

func (e *Executor) run(ctx context.Context, kind string, inv Invocation, timeoutMsg string) Result {
	e.logger.Debug(ctx, "spawning process",
		zap.String("kind", kind),
		zap.String("path", inv.Path),
		zap.String("dir", inv.Dir),
		zap.Duration("timeout", inv.Timeout),
	)
	e.logger.Trace(ctx, "process argv", zap.Strings("args", inv.Args))

	start := time.Now()
	e.metrics.started()
	out, err := e.runner.Run(ctx, inv)
	e.metrics.finished()
	elapsed := time.Since(start)
	e.metrics.observe(kind, elapsed)

	res := Result{ReturnCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}
	outcome := OutcomeCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		outcome = OutcomeTimedOut
		res.ReturnCode = -1
		res.ErrorMessage = timeoutMsg
	case errors.Is(err, context.Canceled):
		outcome = OutcomeCancelled
		res.ReturnCode = -1
		res.ErrorMessage = "Execution cancelled"
	case errors.Is(err, ErrSpawn):
		outcome = OutcomeSpawnError
		res.ReturnCode = 1
		res.ErrorMessage = "Error executing command: " + err.Error()
	default:
		outcome = OutcomeSpawnError
		if res.ReturnCode == 0 {
			res.ReturnCode = 1
		}
		res.ErrorMessage = "Error executing command: " + err.Error()
	}
	e.metrics.record(kind, outcome)

	summary := logging.Execution(kind, string(outcome), res.ReturnCode, elapsed)
	if outcome == OutcomeCompleted {
		e.logger.Info(ctx, "execution finished", summary)
	} else {
		e.logger.Warn(ctx, "execution failed", summary, zap.Error(err))
	}
	return res
}

func (e *Executor) rejected(ctx context.Context, kind, msg string, cause error) Result {
	e.logger.Warn(ctx, "execution rejected", zap.String("kind", kind), zap.String("reason", msg), zap.NamedError("cause", cause))
	e.metrics.record(kind, OutcomeRejected)
	return failure(1, msg)
}

func (e *Executor) recoverPanic(ctx context.Context, kind string, res *Result) {
	if r := recover(); r != nil {
		e.logger.Error(ctx, "execution panicked", zap.String("kind", kind), zap.Any("panic", r))
		e.metrics.record(kind, OutcomePanic)
		*res = failure(1, fmt.Sprintf("Error executing command: %v", r))
	}
}

func (e *Executor) sessionFor(id string) *session.Session {
	if id == "" {
		return nil
	}
	return e.sessions.Get(id)
}

func (e *Executor) timeoutFor(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return e.timeout
}

// environ logs override names only; values may hold credentials.
func (e *Executor) environ(ctx context.Context, sess *session.Session, overrides map[string]string) []string {
	if len(overrides) > 0 {
		e.logger.Debug(ctx, "applying environment overrides", logging.EnvKeys("env_keys", overrides))
	}
	return environ(sess, overrides)
}

// environ is the process environment overlaid with session then request
// overrides. exec uses the last value of a duplicated key.
func environ(sess *session.Session, overrides map[string]string) []string {
	env := os.Environ()
	if sess != nil {
		env = append(env, sess.Environ()...)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func writeTempScript(dir, ext, script string) (string, error) {
	f, err := os.CreateTemp(dir, "shelld-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return path, fmt.Errorf("write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close script file: %w", err)
	}
	return path, nil
}

func reasonOf(err error) string {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
