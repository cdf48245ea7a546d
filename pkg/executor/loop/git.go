package loop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/gobwas/glob"
)

// GitManager reads the state of the workspace repository. The driver never
// writes to the repository; commits come from the agent.
type GitManager struct {
	workspaceDir string
	repo         *git.Repository
	ignore       []glob.Glob
}

// CommitInfo describes a commit made during a run
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Subject string    `json:"subject"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// OpenGitManager opens the repository containing workspaceDir. It fails when
// the directory is not inside a non-bare working tree.
func OpenGitManager(workspaceDir string, config GitConfig) (*GitManager, error) {
	repo, err := git.PlainOpenWithOptions(workspaceDir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	if _, err := repo.Worktree(); err != nil {
		return nil, fmt.Errorf("not a git working tree: %w", err)
	}

	ignore := make([]glob.Glob, 0, len(config.IgnorePatterns))
	for _, pattern := range config.IgnorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ignore = append(ignore, g)
	}

	return &GitManager{
		workspaceDir: workspaceDir,
		repo:         repo,
		ignore:       ignore,
	}, nil
}

// HeadCommit returns the hash HEAD points at, or "" for an unborn branch
func (g *GitManager) HeadCommit() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the short name of the checked-out branch, or "" when detached
func (g *GitManager) CurrentBranch() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Unborn branch: HEAD is symbolic but has no target yet
			sym, symErr := g.repo.Reference(plumbing.HEAD, false)
			if symErr != nil {
				return "", fmt.Errorf("failed to read HEAD: %w", symErr)
			}
			return sym.Target().Short(), nil
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	if !ref.Name().IsBranch() {
		return "", nil
	}
	return ref.Name().Short(), nil
}

// CommitsSince lists commits reachable from HEAD but not from from, newest
// first. If history was rewritten so that from is no longer an ancestor of
// HEAD, the walk stops at their merge base; with no common history only HEAD
// is reported. An empty from lists the whole history.
func (g *GitManager) CommitsSince(from string) ([]CommitInfo, error) {
	head, err := g.HeadCommit()
	if err != nil || head == "" || head == from {
		return nil, err
	}

	headCommit, err := g.repo.CommitObject(plumbing.NewHash(head))
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}

	stops := make(map[plumbing.Hash]bool)
	if from != "" {
		fromCommit, err := g.repo.CommitObject(plumbing.NewHash(from))
		if err != nil {
			// from is gone from the object store
			return []CommitInfo{toCommitInfo(headCommit)}, nil
		}
		bases, err := headCommit.MergeBase(fromCommit)
		if err != nil {
			return nil, fmt.Errorf("failed to find merge base: %w", err)
		}
		if len(bases) == 0 {
			return []CommitInfo{toCommitInfo(headCommit)}, nil
		}
		for _, b := range bases {
			stops[b.Hash] = true
		}
	}

	iter, err := g.repo.Log(&git.LogOptions{From: headCommit.Hash})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if stops[c.Hash] {
			return storer.ErrStop
		}
		commits = append(commits, toCommitInfo(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk log: %w", err)
	}
	return commits, nil
}

// ChangedFiles returns paths that differ between commit from and HEAD,
// minus those matching an ignore pattern. An empty from compares against
// an empty tree.
func (g *GitManager) ChangedFiles(from string) ([]string, error) {
	head, err := g.HeadCommit()
	if err != nil || head == "" || head == from {
		return nil, err
	}

	toTree, err := g.treeOf(head)
	if err != nil {
		return nil, err
	}

	var paths []string
	if from == "" {
		err = toTree.Files().ForEach(func(f *object.File) error {
			paths = append(paths, f.Name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
	} else {
		fromTree, err := g.treeOf(from)
		if err != nil {
			return nil, err
		}
		changes, err := object.DiffTree(fromTree, toTree)
		if err != nil {
			return nil, fmt.Errorf("failed to diff trees: %w", err)
		}
		for _, change := range changes {
			name := change.To.Name
			if name == "" {
				name = change.From.Name
			}
			paths = append(paths, name)
		}
	}

	return g.filter(paths), nil
}

func (g *GitManager) treeOf(hash string) (*object.Tree, error) {
	commit, err := g.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", shortHash(hash), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of %s: %w", shortHash(hash), err)
	}
	return tree, nil
}

func (g *GitManager) filter(paths []string) []string {
	kept := make([]string, 0, len(paths))
outer:
	for _, p := range paths {
		for _, pattern := range g.ignore {
			if pattern.Match(p) {
				continue outer
			}
		}
		kept = append(kept, p)
	}
	return kept
}

func toCommitInfo(c *object.Commit) CommitInfo {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return CommitInfo{
		Hash:    c.Hash.String(),
		Subject: subject,
		Author:  c.Author.Name,
		When:    c.Author.When,
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
