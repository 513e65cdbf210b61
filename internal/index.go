package internal

import (
	"fmt"
	"sync"
)

// CommitIndex is the staging area between a worktree and its next commit.
// Staging the same id twice collapses to the latest operation; the one
// contradiction rejected outright is an Add staged after a Delete of the
// same id.
type CommitIndex struct {
	mu   sync.Mutex
	ops  []Operation
	byID map[string]int // id -> position in ops
}

func NewCommitIndex() *CommitIndex {
	return &CommitIndex{byID: make(map[string]int)}
}

func (ix *CommitIndex) Stage(op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos, ok := ix.byID[op.ID]
	if !ok {
		ix.byID[op.ID] = len(ix.ops)
		ix.ops = append(ix.ops, op)
		return nil
	}

	prev := ix.ops[pos]
	switch {
	case prev.Kind == OpDelete && op.Kind == OpAdd:
		return fmt.Errorf("%w: add after delete of %q", ErrConflictingStagedOp, op.ID)
	case prev.Kind == OpAdd && op.Kind == OpUpdate:
		// Still an add relative to the parent commit; keep the kind,
		// take the new payload.
		op.Kind = OpAdd
	}

	ix.ops[pos] = op
	return nil
}

// Ops returns the staged operations in first-staged order.
func (ix *CommitIndex) Ops() []Operation {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]Operation(nil), ix.ops...)
}

func (ix *CommitIndex) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.ops)
}

func (ix *CommitIndex) Empty() bool {
	return ix.Len() == 0
}

func (ix *CommitIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ops = nil
	ix.byID = make(map[string]int)
}

// Replace swaps the full staged contents, used when loading a persisted
// index.
func (ix *CommitIndex) Replace(ops []Operation) error {
	replacement := NewCommitIndex()
	for _, op := range ops {
		if err := replacement.Stage(op); err != nil {
			return err
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ops = replacement.ops
	ix.byID = replacement.byID
	return nil
}
