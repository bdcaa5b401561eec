// Package filesystem implements the read-only file tools: reading a file,
// rendering a directory tree and searching file contents.
//
// Every path is checked against the permission manager before it is
// touched, and walks skip anything the manager or an ignore file excludes.
package filesystem
