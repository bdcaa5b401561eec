package project

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// errRepoNotAllowed marks a repository whose worktree lies outside the
// readable paths, e.g. a parent checkout of an allowed directory.
var errRepoNotAllowed = errors.New("repository root not allowed")

// GitInfo describes the checkout containing the analyzed directory.
type GitInfo struct {
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`
	Dirty  bool   `json:"dirty"`
	Origin string `json:"origin,omitempty"`
}

// readGitInfo returns nil when dir is not inside a non-bare git repository.
func readGitInfo(dir string, paths PathChecker) (*GitInfo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkPath(paths, wt.Filesystem.Root()); err != nil {
		return nil, fmt.Errorf("%w: %v", errRepoNotAllowed, err)
	}

	info := &GitInfo{}
	if head, err := repo.Head(); err == nil {
		info.Head = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.Origin = urls[0]
		}
	}
	if status, err := wt.Status(); err == nil {
		info.Dirty = !status.IsClean()
	}
	return info, nil
}
