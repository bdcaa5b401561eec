package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/shelld/internal/filesystem"
)

// ===== FILESYSTEM TOOLS =====

type readFileInput struct {
	Path      string `json:"path" jsonschema:"File to read; relative paths resolve against the session directory"`
	Offset    int    `json:"offset,omitempty" jsonschema:"Zero-based first line to return (default: 0)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of lines to return (default: all)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session identifier used to resolve relative paths"`
}

type directoryTreeInput struct {
	Path            string `json:"path,omitempty" jsonschema:"Directory to list (default: session directory); relative paths resolve against it"`
	Depth           int    `json:"depth,omitempty" jsonschema:"Maximum depth (default: 3)"`
	IncludeFiltered bool   `json:"include_filtered,omitempty" jsonschema:"Descend into dot, build and dependency directories and ignore .gitignore rules"`
	SessionID       string `json:"session_id,omitempty" jsonschema:"Session identifier used to resolve relative paths"`
}

// directoryTreeOutput flattens filesystem.Tree; the node tree is recursive
// and stays in the text content.
type directoryTreeOutput struct {
	Root  string               `json:"root" jsonschema:"Absolute directory that was listed"`
	Tree  string               `json:"tree" jsonschema:"Indented listing"`
	Stats filesystem.TreeStats `json:"stats" jsonschema:"Counts of listed and skipped entries"`
}

type searchContentInput struct {
	Pattern   string `json:"pattern" jsonschema:"Regular expression (RE2 syntax) matched against each line"`
	Path      string `json:"path,omitempty" jsonschema:"File or directory to search (default: session directory)"`
	Include   string `json:"include,omitempty" jsonschema:"Glob on file names, e.g. *.go (default: all files)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session identifier used to resolve relative paths"`
}

func (s *Server) registerFilesystemTools() error {
	if err := addTool(s, &ToolMetadata{
		Name:        "read_file",
		Description: "Read a UTF-8 text file inside the allowed paths, optionally a line range. Large files are truncated.",
		Category:    CategoryFilesystem,
		Keywords:    []string{"cat", "open", "view", "file"},
	}, s.handleReadFile); err != nil {
		return err
	}

	if err := addTool(s, &ToolMetadata{
		Name:        "directory_tree",
		Description: "Show a directory as an indented tree. Dot, dependency and build directories and .gitignore matches are skipped unless include_filtered is set.",
		Category:    CategoryFilesystem,
		Keywords:    []string{"ls", "tree", "list", "directory"},
	}, s.handleDirectoryTree); err != nil {
		return err
	}

	return addTool(s, &ToolMetadata{
		Name:        "search_content",
		Description: "Search file contents for a regular expression. Returns path:line:text for each match, honoring .gitignore and the allowed paths.",
		Category:    CategoryFilesystem,
		Keywords:    []string{"grep", "find", "regex", "rg"},
	}, s.handleSearchContent)
}

func (s *Server) handleReadFile(ctx context.Context, req *mcp.CallToolRequest, args readFileInput) (*mcp.CallToolResult, filesystem.FileContent, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "read_file", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	fc, err := s.files.ReadFile(c.ctx, s.sessionPath(sessionID, args.Path), args.Offset, args.Limit)
	if err != nil {
		toolErr = err
		return c.fail(err), filesystem.FileContent{}, nil
	}

	fc.Content = c.scrub(fc.Content)
	text := fc.Content
	if fc.Truncated {
		text += fmt.Sprintf("\n\n[truncated: showing lines %d-%d of a file larger than the read limit]",
			fc.StartLine, fc.StartLine+fc.Lines-1)
	}
	return c.text(text, false), *fc, nil
}

func (s *Server) handleDirectoryTree(ctx context.Context, req *mcp.CallToolRequest, args directoryTreeInput) (*mcp.CallToolResult, directoryTreeOutput, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "directory_tree", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	tree, err := s.files.Tree(c.ctx, s.sessionPath(sessionID, args.Path), args.Depth, args.IncludeFiltered)
	if err != nil {
		toolErr = err
		return c.fail(err), directoryTreeOutput{}, nil
	}
	text := c.scrub(tree.Format())
	return c.text(text, false), directoryTreeOutput{Root: tree.Root, Tree: text, Stats: tree.Stats}, nil
}

func (s *Server) handleSearchContent(ctx context.Context, req *mcp.CallToolRequest, args searchContentInput) (*mcp.CallToolResult, filesystem.SearchResult, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "search_content", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	res, err := s.files.Search(c.ctx, args.Pattern, s.sessionPath(sessionID, args.Path), args.Include)
	if err != nil {
		toolErr = err
		return c.fail(err), filesystem.SearchResult{}, nil
	}
	for i := range res.Matches {
		res.Matches[i].Text = c.scrub(res.Matches[i].Text)
	}
	return c.text(res.Format(), false), *res, nil
}

// sessionPath resolves a relative path against the session directory.
// Empty means the session directory itself.
func (s *Server) sessionPath(sessionID, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return s.sessions.WorkingDir(sessionID)
	}
	if filepath.IsAbs(path) || path == "~" || strings.HasPrefix(path, "~/") {
		return path
	}
	return filepath.Join(s.sessions.WorkingDir(sessionID), path)
}
