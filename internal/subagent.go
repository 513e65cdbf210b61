package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type SubagentStatus string

const (
	SubagentMerged     SubagentStatus = "merged"
	SubagentConflicted SubagentStatus = "conflicted"
	SubagentFailed     SubagentStatus = "failed"
)

// SubagentConfig controls one delegation run.
type SubagentConfig struct {
	// Name labels the subagent branch; a short uuid when empty.
	Name string
	// Strategy for the merge back into the parent branch. Manual when
	// empty, which surfaces conflicts instead of auto-resolving.
	Strategy MergeStrategy
	// Resolver backs the Assisted strategy.
	Resolver ConflictResolver
	Author   string
	// KeepBranch leaves the subagent branch in place after a clean merge.
	KeepBranch bool
}

// SubagentResult reports how the delegation ended. Branch is always set;
// on Conflicted it still exists so the conflicts can be resolved and the
// merge retried, and on Failed it survives so any history the task managed
// to commit stays inspectable.
type SubagentResult struct {
	Status    SubagentStatus   `json:"status"`
	Branch    string           `json:"branch"`
	Commit    *Commit          `json:"commit,omitempty"`
	Merge     *MergeResult     `json:"merge,omitempty"`
	Conflicts []MemoryConflict `json:"conflicts,omitempty"`
	TaskErr   error            `json:"-"`
}

// SubagentTask runs against the subagent's isolated worktree. Everything it
// stages is committed and merged back when it returns nil.
type SubagentTask func(ctx context.Context, wt *Worktree) error

// Retries of the merge-back when the parent branch moves under us.
const subagentMergeRetries = 3

// RunSubagent delegates work to an isolated fork of parent: it branches off
// the parent tip, runs the task in a fresh worktree, commits whatever the
// task staged, and merges the branch back. Failures in the task abort
// before anything reaches the parent branch.
func RunSubagent(ctx context.Context, repo *Repository, mgr *WorktreeManager, parent string, cfg SubagentConfig, task SubagentTask) (*SubagentResult, error) {
	name := cfg.Name
	if name == "" {
		name = uuid.NewString()[:8]
	}
	branchName := "subagent/" + name
	author := cfg.Author
	if author == "" {
		author = "subagent/" + name
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = Manual
	}

	if _, err := repo.CreateBranch(ctx, branchName, parent, "subagent fork of "+parent); err != nil {
		return nil, err
	}

	wt, err := mgr.Create(ctx, branchName)
	if err != nil {
		_ = repo.DeleteBranch(ctx, branchName)
		return nil, err
	}

	cleanup := func(deleteBranch bool) {
		_ = mgr.Remove(ctx, wt.ID())
		if deleteBranch {
			_ = repo.DeleteBranch(ctx, branchName)
		}
	}

	if err := task(ctx, wt); err != nil {
		// The branch stays so whatever the task committed remains
		// reachable.
		cleanup(false)
		return &SubagentResult{Status: SubagentFailed, Branch: branchName, TaskErr: err}, nil
	}

	result := &SubagentResult{Branch: branchName}
	if !wt.index.Empty() {
		c, err := wt.Commit(ctx, author, fmt.Sprintf("subagent %s: task results", name))
		if err != nil {
			cleanup(false)
			return nil, err
		}
		result.Commit = c
	}

	merge, err := mergeBack(ctx, repo, parent, branchName, MergeOptions{
		Strategy: strategy,
		Resolver: cfg.Resolver,
		Author:   author,
		Message:  fmt.Sprintf("merge: subagent %s into %s", name, parent),
	})
	if err != nil {
		if errors.Is(err, ErrMergeConflicts) {
			// Branch stays for conflict resolution.
			_ = mgr.Remove(ctx, wt.ID())
			result.Status = SubagentConflicted
			result.Merge = merge
			result.Conflicts = merge.Conflicts
			return result, nil
		}
		cleanup(false)
		return nil, err
	}

	// Only a clean merge may drop the branch.
	cleanup(!cfg.KeepBranch)
	result.Status = SubagentMerged
	result.Merge = merge
	return result, nil
}

// mergeBack retries the merge when the parent tip moves between the
// three-way computation and the pointer swap.
func mergeBack(ctx context.Context, repo *Repository, into, from string, opts MergeOptions) (*MergeResult, error) {
	var lastErr error
	for attempt := 0; attempt < subagentMergeRetries; attempt++ {
		merge, err := repo.Merge(ctx, into, from, opts)
		if err == nil {
			return merge, nil
		}
		if !errors.Is(err, ErrBranchMoved) {
			return merge, err
		}
		lastErr = err
	}
	return nil, lastErr
}
