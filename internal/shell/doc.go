// Package shell runs commands and scripts on behalf of an untrusted caller.
//
// Every entry point on Executor returns a Result and never an error: policy
// rejections, bad working directories, unsupported languages, spawn failures
// and timeouts are all reported as failed results.
//
// # Command policy
//
// Commands are split into words with POSIX shell quoting. The first word is
// checked against a denylist of commands (compared both as written and by
// basename, so "/bin/rm" is caught by "rm").
//
// By default the policy is strict: shell control operators such as "&&",
// "|", ";", redirections, backticks and "$(" are rejected outright. Setting
// AllowOperators switches to the permissive policy, where such commands are
// run through a shell and every pipeline segment's first word is still
// checked against the denylist. The denylist is a guard rail, not a sandbox.
//
// # Execution
//
// Commands run directly from their argument vector unless a login shell is
// requested or the permissive policy routes them through a shell. Each
// subprocess gets its own process group which is killed as a whole on
// timeout or cancellation.
//
// A bare "cd" is handled without spawning anything: it updates the session's
// working directory after checking that the target exists and is allowed.
package shell
