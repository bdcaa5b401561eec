package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/shelld/internal/project"
)

// ===== PROJECT TOOLS =====

type projectAnalyzeInput struct {
	ProjectDir string `json:"project_dir,omitempty" jsonschema:"Project root (default: session directory)"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"Session identifier used to resolve relative paths"`
}

func (s *Server) registerProjectTools() error {
	return addTool(s, &ToolMetadata{
		Name:        "project_analyze",
		Description: "Summarize a project: file counts per language, primary language, manifests (go.mod, package.json, Cargo.toml, pyproject.toml, ...) with name and version, and git branch, head and dirty state.",
		Category:    CategoryProject,
		Keywords:    []string{"analyze", "languages", "manifest", "git", "overview"},
	}, s.handleProjectAnalyze)
}

func (s *Server) handleProjectAnalyze(ctx context.Context, req *mcp.CallToolRequest, args projectAnalyzeInput) (*mcp.CallToolResult, project.Analysis, error) {
	sessionID := resolveSessionID(req, args.SessionID)
	c := s.begin(ctx, "project_analyze", sessionID)
	var toolErr error
	defer func() { c.end(toolErr) }()

	dir := s.sessionPath(sessionID, args.ProjectDir)
	if toolErr = s.paths.Check(dir); toolErr != nil {
		return c.fail(toolErr), project.Analysis{}, nil
	}

	opts := s.project
	opts.Paths = s.paths
	opts.Logger = s.logger
	analysis, err := project.Analyze(c.ctx, dir, opts)
	if err != nil {
		toolErr = err
		return c.fail(err), project.Analysis{}, nil
	}
	if analysis.Git != nil {
		analysis.Git.Origin = c.scrub(analysis.Git.Origin)
	}
	return c.text(analysis.Summary(), false), *analysis, nil
}
