package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

func newTestRepo(t *testing.T) (*Repository, billy.Filesystem) {
	t.Helper()

	fs := memfs.New()
	if err := InitRepository(fs, "tester"); err != nil {
		t.Fatalf("init: %v", err)
	}
	repo, err := OpenRepository(fs)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo, fs
}

func mustCommit(t *testing.T, repo *Repository, branch string, ops ...Operation) *Commit {
	t.Helper()

	b, err := repo.Branch(branch)
	if err != nil {
		t.Fatalf("branch %s: %v", branch, err)
	}
	c, err := repo.CommitOps(context.Background(), branch, b.Tip, ops, "tester", "test commit")
	if err != nil {
		t.Fatalf("commit on %s: %v", branch, err)
	}
	return c
}

func TestInitRepository(t *testing.T) {
	repo, fs := newTestRepo(t)

	head, tip := repo.Head()
	if head != DefaultBranch {
		t.Errorf("head = %q, want %q", head, DefaultBranch)
	}

	root, ok := repo.Graph().Get(tip)
	if !ok {
		t.Fatal("head tip not in graph")
	}
	if !root.IsRoot() {
		t.Error("initial commit should be a root")
	}

	if err := InitRepository(fs, "tester"); err == nil {
		t.Error("expected second init to fail")
	}
}

func TestOpenRepositoryUninitialized(t *testing.T) {
	if _, err := OpenRepository(memfs.New()); err == nil {
		t.Error("expected open of empty fs to fail")
	}
}

func TestCommitAdvancesBranch(t *testing.T) {
	repo, _ := newTestRepo(t)

	c := mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("k", "v")))

	_, tip := repo.Head()
	if tip != c.ID {
		t.Errorf("tip = %s, want %s", tip[:8], c.ID[:8])
	}
}

func TestCommitEmptyOpsRejected(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, tip := repo.Head()
	_, err := repo.CommitOps(context.Background(), DefaultBranch, tip, nil, "tester", "noop")
	if !errors.Is(err, ErrEmptyCommit) {
		t.Errorf("expected ErrEmptyCommit, got %v", err)
	}
}

func TestCommitStaleTip(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, staleTip := repo.Head()
	mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("a", "1")))

	_, err := repo.CommitOps(context.Background(), DefaultBranch, staleTip,
		[]Operation{AddOp(NewRecord("b", "2"))}, "tester", "stale")
	if !errors.Is(err, ErrBranchMoved) {
		t.Errorf("expected ErrBranchMoved, got %v", err)
	}
}

func TestConcurrentCommitsOneWinner(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, tip := repo.Head()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = repo.CommitOps(context.Background(), DefaultBranch, tip,
				[]Operation{AddOp(NewRecord("k", "v"))}, "tester", "race")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrBranchMoved):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}

func TestConcurrentCommitsDifferentBranches(t *testing.T) {
	repo, fs := newTestRepo(t)
	ctx := context.Background()

	const branches = 8
	names := make([]string, branches)
	for i := 0; i < branches; i++ {
		names[i] = fmt.Sprintf("lane-%d", i)
		if _, err := repo.CreateBranch(ctx, names[i], "", ""); err != nil {
			t.Fatalf("create %s: %v", names[i], err)
		}
	}

	// Commits on independent branches never contend on a tip; they must
	// all land, and the shared commit/refs files must survive the
	// concurrent writes intact.
	var wg sync.WaitGroup
	errs := make([]error, branches)
	for i := 0; i < branches; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b, err := repo.Branch(names[n])
			if err != nil {
				errs[n] = err
				return
			}
			_, errs[n] = repo.CommitOps(ctx, names[n], b.Tip,
				[]Operation{AddOp(NewRecord(fmt.Sprintf("lane/%d", n), "v"))}, "tester", "parallel")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("commit on %s: %v", names[i], err)
		}
	}

	// Everything written is loadable and verifies.
	reopened, err := OpenRepository(fs)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	for _, name := range names {
		b, err := reopened.Branch(name)
		if err != nil {
			t.Fatalf("branch %s after reopen: %v", name, err)
		}
		if _, ok := reopened.Graph().Get(b.Tip); !ok {
			t.Errorf("tip of %s missing from reopened graph", name)
		}
	}
}

func TestCreateAndDeleteBranch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	b, err := repo.CreateBranch(ctx, "experiment", "", "trial branch")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, tip := repo.Head()
	if b.Tip != tip {
		t.Errorf("new branch tip = %s, want head tip %s", b.Tip[:8], tip[:8])
	}
	if b.Description != "trial branch" {
		t.Errorf("description = %q", b.Description)
	}

	if _, err := repo.CreateBranch(ctx, "experiment", "", ""); !errors.Is(err, ErrBranchExists) {
		t.Errorf("expected ErrBranchExists, got %v", err)
	}

	if err := repo.DeleteBranch(ctx, "experiment"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteBranch(ctx, "experiment"); !errors.Is(err, ErrUnknownRef) {
		t.Errorf("expected ErrUnknownRef, got %v", err)
	}
}

func TestDeleteBranchGuards(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// HEAD branch cannot be deleted while others exist
	if _, err := repo.CreateBranch(ctx, "other", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteBranch(ctx, DefaultBranch); !errors.Is(err, ErrBranchInUse) {
		t.Errorf("expected ErrBranchInUse for HEAD, got %v", err)
	}

	// A retained branch cannot be deleted
	repo.retainBranch("other")
	if err := repo.DeleteBranch(ctx, "other"); !errors.Is(err, ErrBranchInUse) {
		t.Errorf("expected ErrBranchInUse for retained, got %v", err)
	}
	repo.releaseBranch("other")
	if err := repo.DeleteBranch(ctx, "other"); err != nil {
		t.Fatalf("delete after release: %v", err)
	}

	// The last branch cannot be deleted
	if err := repo.DeleteBranch(ctx, DefaultBranch); !errors.Is(err, ErrLastBranch) {
		t.Errorf("expected ErrLastBranch, got %v", err)
	}
}

func TestDeletedBranchCommitsStayReachable(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateBranch(ctx, "side", "", ""); err != nil {
		t.Fatal(err)
	}
	c := mustCommit(t, repo, "side", AddOp(NewRecord("k", "v")))

	if err := repo.DeleteBranch(ctx, "side"); err != nil {
		t.Fatal(err)
	}

	if _, ok := repo.Graph().Get(c.ID); !ok {
		t.Error("commit vanished with its branch")
	}
	if _, err := repo.Resolve(c.ID[:12]); err != nil {
		t.Errorf("commit no longer resolvable: %v", err)
	}
}

func TestLogFirstParentNewestFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c1 := mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("a", "1")))
	c2 := mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("b", "2")))

	commits, err := repo.Log(ctx, DefaultBranch, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 3 {
		t.Fatalf("log length = %d, want 3", len(commits))
	}
	if commits[0].ID != c2.ID || commits[1].ID != c1.ID {
		t.Error("log not newest-first")
	}
	if !commits[2].IsRoot() {
		t.Error("log should end at the root")
	}

	limited, err := repo.Log(ctx, DefaultBranch, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited log length = %d, want 2", len(limited))
	}
}

func TestResolve(t *testing.T) {
	repo, _ := newTestRepo(t)

	c := mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("k", "v")))

	for _, ref := range []string{DefaultBranch, "HEAD", "", c.ID, c.ID[:10]} {
		got, err := repo.Resolve(ref)
		if err != nil {
			t.Errorf("resolve %q: %v", ref, err)
			continue
		}
		if got != c.ID {
			t.Errorf("resolve %q = %s, want %s", ref, got[:8], c.ID[:8])
		}
	}

	if _, err := repo.Resolve("no-such-ref"); !errors.Is(err, ErrUnknownRef) {
		t.Errorf("expected ErrUnknownRef, got %v", err)
	}
}

func TestResetBranch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c1 := mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("a", "1")))
	mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("b", "2")))

	if err := repo.ResetBranch(ctx, DefaultBranch, c1.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	_, tip := repo.Head()
	if tip != c1.ID {
		t.Errorf("tip after reset = %s, want %s", tip[:8], c1.ID[:8])
	}
}

func TestReopenRestoresState(t *testing.T) {
	repo, fs := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateBranch(ctx, "side", "", "kept across restarts"); err != nil {
		t.Fatal(err)
	}
	c := mustCommit(t, repo, "side", AddOp(NewRecord("k", "v")))
	if err := repo.SetHead("side"); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	reopened, err := OpenRepository(fs)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	head, tip := reopened.Head()
	if head != "side" {
		t.Errorf("head = %q, want %q", head, "side")
	}
	if tip != c.ID {
		t.Errorf("tip = %s, want %s", tip[:8], c.ID[:8])
	}
	b, err := reopened.Branch("side")
	if err != nil {
		t.Fatal(err)
	}
	if b.Description != "kept across restarts" {
		t.Errorf("description lost: %q", b.Description)
	}

	state, err := reopened.StateAt(ctx, "side")
	if err != nil {
		t.Fatal(err)
	}
	if state["k"] == nil || state["k"].Content != "v" {
		t.Error("state not reproducible after reopen")
	}
}

func TestStateAtReplaysHistory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	mustCommit(t, repo, DefaultBranch, AddOp(NewRecord("a", "1")), AddOp(NewRecord("b", "2")))
	mid := mustCommit(t, repo, DefaultBranch, UpdateOp("a", "1.1", nil))
	mustCommit(t, repo, DefaultBranch, DeleteOp("b"))

	state, err := repo.StateAt(ctx, DefaultBranch)
	if err != nil {
		t.Fatal(err)
	}
	if len(state) != 1 {
		t.Fatalf("state size = %d, want 1", len(state))
	}
	if state["a"].Content != "1.1" {
		t.Errorf("a = %q, want %q", state["a"].Content, "1.1")
	}

	// Historic states stay reachable
	midState, err := repo.StateAt(ctx, mid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(midState) != 2 || midState["b"].Content != "2" {
		t.Errorf("historic state wrong: %+v", midState)
	}
}

func TestStateAtTotalReplay(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Update to a missing id materializes it, delete of a missing id is
	// a no-op.
	mustCommit(t, repo, DefaultBranch, UpdateOp("ghost", "appears", nil), DeleteOp("never-was"))

	state, err := repo.StateAt(ctx, DefaultBranch)
	if err != nil {
		t.Fatal(err)
	}
	if state["ghost"] == nil || state["ghost"].Content != "appears" {
		t.Errorf("ghost = %+v", state["ghost"])
	}
	if _, ok := state["never-was"]; ok {
		t.Error("deleting a missing id should be a no-op")
	}
}
