package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ===== TOOL DISCOVERY =====

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Substring or regular expression matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Filter results to a category (execution, filesystem, project, session, discovery)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolSearchOutput struct {
	Query      string          `json:"query" jsonschema:"Search query used"`
	Results    []*SearchResult `json:"results" jsonschema:"Matching tools with match score and reason"`
	Count      int             `json:"count" jsonschema:"Number of tools found"`
	TotalTools int             `json:"total_tools" jsonschema:"Total number of tools in registry"`
}

type toolListInput struct {
	Category string `json:"category,omitempty" jsonschema:"Filter to a specific category"`
}

type toolListOutput struct {
	Tools []*ToolMetadata `json:"tools" jsonschema:"Registered tools with metadata"`
	Count int             `json:"count" jsonschema:"Number of tools returned"`
}

func (s *Server) registerDiscoveryTools() error {
	if err := addTool(s, &ToolMetadata{
		Name:        "tool_search",
		Description: "Search the available tools by name, description or keyword.",
		Category:    CategoryDiscovery,
		Keywords:    []string{"help", "discover", "find tool"},
	}, s.handleToolSearch); err != nil {
		return err
	}

	return addTool(s, &ToolMetadata{
		Name:        "tool_list",
		Description: "List every available tool with its category and description.",
		Category:    CategoryDiscovery,
		Keywords:    []string{"help", "tools"},
	}, s.handleToolList)
}

func (s *Server) handleToolSearch(ctx context.Context, _ *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
	c := s.begin(ctx, "tool_search", "")
	var toolErr error
	defer func() { c.end(toolErr) }()

	if strings.TrimSpace(args.Query) == "" {
		toolErr = fmt.Errorf("query is required")
		return c.fail(toolErr), toolSearchOutput{}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 5
	}

	var results []*SearchResult
	if args.Category != "" {
		results = s.registry.SearchByCategory(args.Query, ToolCategory(args.Category))
	} else {
		results = s.registry.Search(args.Query)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	out := toolSearchOutput{
		Query:      args.Query,
		Results:    results,
		Count:      len(results),
		TotalTools: s.registry.Count(),
	}
	if len(results) == 0 {
		return c.text("No tools found matching: "+args.Query, false), out, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tool(s) for query '%s':\n", len(results), args.Query)
	for _, r := range results {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", r.Tool.Name, r.Tool.Category, r.Tool.Description)
	}
	return c.text(strings.TrimRight(b.String(), "\n"), false), out, nil
}

func (s *Server) handleToolList(ctx context.Context, _ *mcp.CallToolRequest, args toolListInput) (*mcp.CallToolResult, toolListOutput, error) {
	c := s.begin(ctx, "tool_list", "")
	defer c.end(nil)

	tools := s.registry.List()
	if args.Category != "" {
		tools = s.registry.ListByCategory(ToolCategory(args.Category))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tools", len(tools))
	for _, t := range tools {
		fmt.Fprintf(&b, "\n- %s [%s]", t.Name, t.Category)
	}
	return c.text(b.String(), false), toolListOutput{Tools: tools, Count: len(tools)}, nil
}
