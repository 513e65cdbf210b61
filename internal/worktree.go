package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Worktree is an isolated working view over one branch: a private record
// store synced to a checked-out commit plus a staging index. Concurrent
// worktrees never see each other's staged operations; they only interact
// through commits on shared branches.
type Worktree struct {
	id        string
	repo      *Repository
	store     RecordStore
	index     *CommitIndex
	createdAt time.Time

	mu     sync.Mutex
	branch string // "" when detached
	tip    string
}

func (w *Worktree) ID() string           { return w.id }
func (w *Worktree) Store() RecordStore   { return w.store }
func (w *Worktree) CreatedAt() time.Time { return w.createdAt }

func (w *Worktree) Branch() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.branch
}

func (w *Worktree) Tip() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tip
}

func (w *Worktree) Detached() bool {
	return w.Branch() == ""
}

// WorktreeStatus is a point-in-time summary for status output.
type WorktreeStatus struct {
	ID       string      `json:"id"`
	Branch   string      `json:"branch,omitempty"`
	Tip      string      `json:"tip"`
	Detached bool        `json:"detached,omitempty"`
	Behind   bool        `json:"behind,omitempty"`
	Staged   []Operation `json:"staged,omitempty"`
}

func (w *Worktree) Status() WorktreeStatus {
	w.mu.Lock()
	branch, tip := w.branch, w.tip
	w.mu.Unlock()

	st := WorktreeStatus{
		ID:       w.id,
		Branch:   branch,
		Tip:      tip,
		Detached: branch == "",
		Staged:   w.index.Ops(),
	}
	if branch != "" {
		if b, err := w.repo.Branch(branch); err == nil {
			st.Behind = b.Tip != tip
		}
	}
	return st
}

// Get reads a record from the working state.
func (w *Worktree) Get(ctx context.Context, id string) (*MemoryRecord, error) {
	return w.store.Get(ctx, id)
}

// Records lists the working state, filtered.
func (w *Worktree) Records(ctx context.Context, filter RecordFilter) ([]*MemoryRecord, error) {
	return w.store.Query(ctx, filter)
}

// Set writes a record into the working state and stages the matching
// operation: an add if the id is new to this worktree, an update otherwise.
func (w *Worktree) Set(ctx context.Context, id, content string, properties map[string]string) error {
	if !ValidRecordID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidRecordID, id)
	}

	prev, err := w.store.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	rec := &MemoryRecord{
		ID:           id,
		Content:      content,
		Properties:   cloneProps(properties),
		CreatedAt:    now,
		LastModified: now,
	}

	var op Operation
	if prev == nil {
		op = AddOp(rec)
	} else {
		rec.CreatedAt = prev.CreatedAt
		op = UpdateOp(id, content, properties)
	}

	if err := w.index.Stage(op); err != nil {
		return err
	}
	if err := w.store.Put(ctx, rec); err != nil {
		return err
	}
	return w.persistIndex()
}

// Delete removes a record from the working state and stages the deletion.
func (w *Worktree) Delete(ctx context.Context, id string) error {
	found, err := w.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := w.index.Stage(DeleteOp(id)); err != nil {
		return err
	}
	return w.persistIndex()
}

// Staged returns the pending operations in staging order.
func (w *Worktree) Staged() []Operation {
	return w.index.Ops()
}

// Commit seals the staged operations onto the worktree's branch. If another
// writer advanced the branch since this worktree's checkout the commit
// fails with ErrBranchMoved and the index stays intact; the caller decides
// whether to refresh and retry.
func (w *Worktree) Commit(ctx context.Context, author, message string) (*Commit, error) {
	w.mu.Lock()
	branch, tip := w.branch, w.tip
	w.mu.Unlock()

	if branch == "" {
		return nil, fmt.Errorf("%w: detached worktree cannot commit", ErrUnknownRef)
	}

	// One snapshot: the committed operations are exactly the ones checked.
	ops := w.index.Ops()
	if len(ops) == 0 {
		return nil, ErrEmptyCommit
	}

	c, err := w.repo.CommitOps(ctx, branch, tip, ops, author, message)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.tip = c.ID
	w.mu.Unlock()

	w.index.Clear()
	// The commit already landed; a stale index file on disk is harmless and
	// gets rewritten on the next stage.
	if err := w.repo.state.removeIndex(w.id); err != nil {
		w.repo.log.Warn("remove staged index", "worktree", w.id, "err", err)
	}
	return c, nil
}

// Checkout moves the worktree to ref and syncs its store to that state. A
// branch name attaches the worktree to the branch; a commit id detaches it.
// Staged operations block the move unless force is set, in which case they
// are discarded.
func (w *Worktree) Checkout(ctx context.Context, ref string, force bool) (*CheckoutResult, error) {
	if !w.index.Empty() && !force {
		return nil, fmt.Errorf("%w: %d operations staged", ErrDirtyWorktree, w.index.Len())
	}

	targetBranch := ""
	if _, err := w.repo.Branch(ref); err == nil {
		targetBranch = ref
	}
	target, err := w.repo.Resolve(ref)
	if err != nil {
		return nil, err
	}

	state, err := w.repo.mat.stateAt(ctx, target)
	if err != nil {
		return nil, err
	}
	added, updated, deleted, err := syncStore(ctx, w.store, state)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	prevBranch, prevTip := w.branch, w.tip
	w.branch = targetBranch
	w.tip = target
	w.mu.Unlock()

	if prevBranch != targetBranch {
		if targetBranch != "" {
			w.repo.retainBranch(targetBranch)
		}
		if prevBranch != "" {
			w.repo.releaseBranch(prevBranch)
		}
	}

	w.index.Clear()
	if err := w.repo.state.removeIndex(w.id); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Branch:   targetBranch,
		Previous: prevTip,
		Tip:      target,
		Added:    added,
		Updated:  updated,
		Deleted:  deleted,
	}, nil
}

// Refresh re-checks-out the worktree's branch tip, the usual follow-up to
// ErrBranchMoved. Fails on a dirty index unless force is set.
func (w *Worktree) Refresh(ctx context.Context, force bool) (*CheckoutResult, error) {
	branch := w.Branch()
	if branch == "" {
		return nil, fmt.Errorf("%w: detached worktree", ErrUnknownRef)
	}
	return w.Checkout(ctx, branch, force)
}

// Discard drops all staged operations and restores the store to the
// checked-out commit.
func (w *Worktree) Discard(ctx context.Context) error {
	state, err := w.repo.mat.stateAt(ctx, w.Tip())
	if err != nil {
		return err
	}
	if _, _, _, err := syncStore(ctx, w.store, state); err != nil {
		return err
	}

	w.index.Clear()
	return w.repo.state.removeIndex(w.id)
}

func (w *Worktree) persistIndex() error {
	w.mu.Lock()
	branch, tip := w.branch, w.tip
	w.mu.Unlock()

	return w.repo.state.writeIndex(w.id, persistedIndex{
		Branch:  branch,
		Base:    tip,
		Updated: time.Now().UTC(),
		Ops:     w.index.Ops(),
	})
}

// StoreFactory builds the private record store for a new worktree. The
// returned store is closed on Remove when it implements io.Closer.
type StoreFactory func(worktreeID string) (RecordStore, error)

// WorktreeManager creates and tracks worktrees over one repository.
type WorktreeManager struct {
	repo     *Repository
	storeFor StoreFactory

	mu        sync.Mutex
	worktrees map[string]*Worktree
}

func NewWorktreeManager(repo *Repository, storeFor StoreFactory) *WorktreeManager {
	if storeFor == nil {
		storeFor = func(string) (RecordStore, error) { return NewMemStore(), nil }
	}
	return &WorktreeManager{
		repo:      repo,
		storeFor:  storeFor,
		worktrees: make(map[string]*Worktree),
	}
}

// Create opens a fresh worktree on branch and syncs its store to the branch
// tip. The branch is retained until Remove.
func (m *WorktreeManager) Create(ctx context.Context, branch string) (*Worktree, error) {
	return m.CreateNamed(ctx, uuid.NewString(), branch)
}

// CreateNamed is Create with a caller-chosen worktree id, used for the
// stable primary worktree.
func (m *WorktreeManager) CreateNamed(ctx context.Context, id, branch string) (*Worktree, error) {
	b, err := m.repo.Branch(branch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.worktrees[id]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("worktree %s already attached", id)
	}
	m.mu.Unlock()

	store, err := m.storeFor(id)
	if err != nil {
		return nil, err
	}

	w := &Worktree{
		id:        id,
		repo:      m.repo,
		store:     store,
		index:     NewCommitIndex(),
		createdAt: time.Now().UTC(),
		branch:    branch,
		tip:       b.Tip,
	}

	state, err := m.repo.mat.stateAt(ctx, b.Tip)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	if _, _, _, err := syncStore(ctx, store, state); err != nil {
		closeStore(store)
		return nil, err
	}

	m.repo.retainBranch(branch)
	m.mu.Lock()
	m.worktrees[w.id] = w
	m.mu.Unlock()

	m.repo.log.Debug("worktree created", "id", w.id, "branch", branch, "tip", b.Tip)
	return w, nil
}

// Resume reattaches a worktree whose staged index survived a restart. The
// store is rebuilt from the recorded base commit and the staged operations
// are replayed onto it.
func (m *WorktreeManager) Resume(ctx context.Context, id string) (*Worktree, error) {
	idx, ok, err := m.repo.state.loadIndex(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeNotFound, id)
	}

	store, err := m.storeFor(id)
	if err != nil {
		return nil, err
	}

	w := &Worktree{
		id:        id,
		repo:      m.repo,
		store:     store,
		index:     NewCommitIndex(),
		createdAt: idx.Updated,
		branch:    idx.Branch,
		tip:       idx.Base,
	}
	if err := w.index.Replace(idx.Ops); err != nil {
		closeStore(store)
		return nil, err
	}

	state, err := m.repo.mat.stateAt(ctx, idx.Base)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	for _, op := range idx.Ops {
		applyOp(state, op, idx.Updated)
	}
	if _, _, _, err := syncStore(ctx, store, state); err != nil {
		closeStore(store)
		return nil, err
	}

	if idx.Branch != "" {
		m.repo.retainBranch(idx.Branch)
	}
	m.mu.Lock()
	m.worktrees[w.id] = w
	m.mu.Unlock()
	return w, nil
}

// PersistedWorktrees lists the ids of staged indexes on disk, including
// those not currently attached.
func (m *WorktreeManager) PersistedWorktrees() ([]string, error) {
	return m.repo.state.listIndexes()
}

func (m *WorktreeManager) Get(id string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worktrees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeNotFound, id)
	}
	return w, nil
}

// List returns attached worktrees oldest first.
func (m *WorktreeManager) List() []*Worktree {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Worktree, 0, len(m.worktrees))
	for _, w := range m.worktrees {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Remove detaches the worktree, releases its branch, deletes its persisted
// index, and closes its store. Staged operations are lost.
func (m *WorktreeManager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	w, ok := m.worktrees[id]
	delete(m.worktrees, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrWorktreeNotFound, id)
	}

	if branch := w.Branch(); branch != "" {
		m.repo.releaseBranch(branch)
	}
	if err := m.repo.state.removeIndex(id); err != nil {
		return err
	}
	closeStore(w.store)

	m.repo.log.Debug("worktree removed", "id", id)
	return nil
}

// Close removes every attached worktree.
func (m *WorktreeManager) Close(ctx context.Context) error {
	for _, w := range m.List() {
		if err := m.Remove(ctx, w.ID()); err != nil {
			return err
		}
	}
	return nil
}

func closeStore(store RecordStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
