package mcp

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory represents the functional category of a tool.
type ToolCategory string

const (
	// CategoryExecution is for command and script tools.
	CategoryExecution ToolCategory = "execution"
	// CategoryFilesystem is for read, tree and search tools.
	CategoryFilesystem ToolCategory = "filesystem"
	// CategoryProject is for project analysis.
	CategoryProject ToolCategory = "project"
	// CategorySession is for session inspection.
	CategorySession ToolCategory = "session"
	// CategoryDiscovery is for tool_list and tool_search.
	CategoryDiscovery ToolCategory = "discovery"
)

var validCategories = map[ToolCategory]bool{
	CategoryExecution:  true,
	CategoryFilesystem: true,
	CategoryProject:    true,
	CategorySession:    true,
	CategoryDiscovery:  true,
}

var (
	// ErrToolExists is returned when a tool name is registered twice.
	ErrToolExists = errors.New("tool already registered")
	// ErrToolNotFound is returned by Get for unknown names.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidTool is returned for metadata that fails validation.
	ErrInvalidTool = errors.New("invalid tool metadata")
)

// ToolMetadata contains metadata about a registered MCP tool.
type ToolMetadata struct {
	// Name is the unique tool name (e.g., "run_command").
	Name string `json:"name"`

	// Description is a human-readable description of what the tool does.
	Description string `json:"description"`

	// Category is the functional category of the tool.
	Category ToolCategory `json:"category"`

	// RateLimited is set for tools that share the per-session execution budget.
	RateLimited bool `json:"rate_limited"`

	// Keywords are additional searchable terms for this tool.
	Keywords []string `json:"keywords,omitempty"`
}

// ToolRegistry keeps metadata about every registered tool.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
	order []string
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*ToolMetadata),
	}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool *ToolMetadata) error {
	if tool == nil {
		return fmt.Errorf("%w: nil metadata", ErrInvalidTool)
	}
	if tool.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if tool.Description == "" {
		return fmt.Errorf("%w: description is required for %s", ErrInvalidTool, tool.Name)
	}
	if !validCategories[tool.Category] {
		return fmt.Errorf("%w: unknown category %q for %s", ErrInvalidTool, tool.Category, tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Get returns the metadata for a specific tool.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns all registered tool metadata in registration order.
func (r *ToolRegistry) List() []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// ListNames returns all registered tool names in registration order.
func (r *ToolRegistry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListByCategory returns all tools in a specific category.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	result := make([]*ToolMetadata, 0)
	for _, tool := range r.List() {
		if tool.Category == category {
			result = append(result, tool)
		}
	}
	return result
}

// SearchResult contains a tool match from a search query.
type SearchResult struct {
	// Tool is the matched tool metadata.
	Tool *ToolMetadata `json:"tool"`

	// Score indicates match quality (higher is better).
	// 3 = exact name match
	// 2 = name contains query
	// 1 = description/keywords match
	Score int `json:"score"`

	// MatchReason describes why this tool matched.
	MatchReason string `json:"match_reason"`
}

// Search finds tools matching the query. The query is matched
// case-insensitively as a substring and, when it compiles, as a regular
// expression against names, descriptions and keywords.
func (r *ToolRegistry) Search(query string) []*SearchResult {
	if query == "" {
		return nil
	}

	queryLower := strings.ToLower(query)
	var regex *regexp.Regexp
	if re, err := regexp.Compile("(?i)" + query); err == nil {
		regex = re
	}

	var results []*SearchResult
	for _, tool := range r.List() {
		if sr := matchTool(tool, queryLower, regex); sr != nil {
			results = append(results, sr)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func matchTool(tool *ToolMetadata, queryLower string, regex *regexp.Regexp) *SearchResult {
	hit := func(score int, reason string) *SearchResult {
		return &SearchResult{Tool: tool, Score: score, MatchReason: reason}
	}

	nameLower := strings.ToLower(tool.Name)
	switch {
	case nameLower == queryLower:
		return hit(3, "exact name match")
	case strings.Contains(nameLower, queryLower):
		return hit(2, "name contains query")
	case regex != nil && regex.MatchString(tool.Name):
		return hit(2, "name matches pattern")
	case strings.Contains(strings.ToLower(tool.Description), queryLower):
		return hit(1, "description contains query")
	case regex != nil && regex.MatchString(tool.Description):
		return hit(1, "description matches pattern")
	}

	for _, kw := range tool.Keywords {
		if strings.Contains(strings.ToLower(kw), queryLower) {
			return hit(1, "keyword contains query")
		}
		if regex != nil && regex.MatchString(kw) {
			return hit(1, "keyword matches pattern")
		}
	}
	return nil
}

// SearchByCategory searches within a specific category.
func (r *ToolRegistry) SearchByCategory(query string, category ToolCategory) []*SearchResult {
	filtered := make([]*SearchResult, 0)
	for _, result := range r.Search(query) {
		if result.Tool.Category == category {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// Count returns the total number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
