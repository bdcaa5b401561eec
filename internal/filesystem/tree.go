package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/shelld/internal/ignore"
)

// Skip reasons reported on directories that were not descended into.
const (
	SkipFiltered = "filtered-directory"
	SkipDepth    = "depth-limit"
)

// Node is one entry of a directory tree.
type Node struct {
	Name     string  `json:"name"`
	Dir      bool    `json:"dir"`
	Skipped  string  `json:"skipped,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// TreeStats counts what a Tree call saw.
type TreeStats struct {
	Directories     int  `json:"directories"`
	Files           int  `json:"files"`
	SkippedDepth    int  `json:"skipped_depth"`
	SkippedFiltered int  `json:"skipped_filtered"`
	Truncated       bool `json:"truncated"`
}

// Tree is a rendered directory listing.
type Tree struct {
	Root  string    `json:"root"`
	Nodes []*Node   `json:"nodes"`
	Stats TreeStats `json:"stats"`
}

type treeWalk struct {
	svc      *Service
	ctx      context.Context
	root     string
	depth    int
	filtered bool
	matcher  *ignore.Matcher
	entries  int
	stats    TreeStats
}

// Tree lists path recursively. Directories come first, then files, each
// sorted by name. depth 0 uses the configured maximum. With includeFiltered
// set, ignore files and the built-in filtered directories are not applied.
func (s *Service) Tree(ctx context.Context, path string, depth int, includeFiltered bool) (*Tree, error) {
	root, err := s.resolveDir(path)
	if err != nil {
		return nil, err
	}
	if depth <= 0 || depth > s.cfg.MaxTreeDepth {
		depth = s.cfg.MaxTreeDepth
	}
	w := &treeWalk{
		svc:      s,
		ctx:      ctx,
		root:     root,
		depth:    depth,
		filtered: !includeFiltered,
		matcher:  ignore.New(root, s.cfg.IgnoreFiles),
	}
	nodes, err := w.walk(root, "", 0)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root, Nodes: nodes, Stats: w.stats}, nil
}

func (w *treeWalk) walk(dir, rel string, level int) ([]*Node, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	if w.filtered {
		if err := w.matcher.Enter(rel); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	nodes := make([]*Node, 0, len(entries))
	for _, e := range entries {
		if w.entries >= w.svc.cfg.MaxEntries {
			w.stats.Truncated = true
			break
		}
		path := filepath.Join(dir, e.Name())
		childRel := joinRel(rel, e.Name())
		if w.svc.paths.Check(path) != nil {
			continue
		}
		isDir := e.IsDir()
		if w.filtered && w.matcher.Ignored(childRel, isDir) && !isDir {
			continue
		}
		w.entries++

		if !isDir {
			w.stats.Files++
			nodes = append(nodes, &Node{Name: e.Name()})
			continue
		}

		w.stats.Directories++
		node := &Node{Name: e.Name(), Dir: true}
		switch {
		case w.filtered && (isFilteredDir(e.Name()) || w.matcher.Ignored(childRel, true)):
			node.Skipped = SkipFiltered
			w.stats.SkippedFiltered++
		case level+1 >= w.depth:
			node.Skipped = SkipDepth
			w.stats.SkippedDepth++
		default:
			if node.Children, err = w.walk(path, childRel, level+1); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Format renders the tree as an indented listing followed by a summary line.
func (t *Tree) Format() string {
	var b strings.Builder
	formatNodes(&b, t.Nodes, 0)
	fmt.Fprintf(&b, "\nDirectory Stats: %d directories, %d files (%d skipped due to depth limit, %d filtered directories skipped)",
		t.Stats.Directories, t.Stats.Files, t.Stats.SkippedDepth, t.Stats.SkippedFiltered)
	if t.Stats.Truncated {
		b.WriteString("\nOutput truncated at the entry limit.")
	}
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []*Node, level int) {
	indent := strings.Repeat("  ", level)
	for _, n := range nodes {
		switch {
		case !n.Dir:
			b.WriteString(indent + n.Name + "\n")
		case n.Skipped != "":
			b.WriteString(indent + n.Name + "/ [skipped - " + n.Skipped + "]\n")
		default:
			b.WriteString(indent + n.Name + "/\n")
			formatNodes(b, n.Children, level+1)
		}
	}
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
