// Package permissions decides which filesystem locations tools may touch.
//
// A Manager holds three sets: allowed roots, excluded paths and excluded
// name patterns. A path is allowed when its resolved form equals or lies
// beneath an allowed root, is not beneath any excluded path, and no
// component below the root matches an exclusion pattern. Exclusion always
// wins over allowance.
//
// Paths are resolved to absolute form with "~" expanded and symlinks
// evaluated. Paths that do not exist yet are resolved through their nearest
// existing ancestor, so a symlinked parent cannot be used to escape a root.
//
// Manager is safe for concurrent use. Mutations are expected during startup,
// reads on every tool call.
package permissions
