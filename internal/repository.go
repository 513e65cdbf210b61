package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

const (
	DefaultBranch = "main"
	DefaultAuthor = "agent"
)

// Branch is a named mutable pointer to a commit tip.
type Branch struct {
	Name        string    `json:"name"`
	Tip         string    `json:"tip"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository owns the commit graph, the branch table, and HEAD. The graph
// is append-only and safe for concurrent readers; branch tips only move
// through the compare-and-swap paths below, so two writers racing on the
// same branch are linearized and the loser gets ErrBranchMoved.
type Repository struct {
	graph *CommitGraph
	state *stateStore
	mat   *materializer
	log   *slog.Logger
	clock func() time.Time

	mu       sync.Mutex
	branches map[string]*Branch
	head     string         // current branch name
	retained map[string]int // branch -> live worktree count
}

type RepositoryOption func(*Repository)

func WithLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(clock func() time.Time) RepositoryOption {
	return func(r *Repository) { r.clock = clock }
}

// InitRepository writes a fresh repository onto fs: a root commit and a
// default branch pointing at it.
func InitRepository(fs billy.Filesystem, author string) error {
	state, err := newStateStore(fs)
	if err != nil {
		return err
	}

	refs, err := state.loadRefs()
	if err != nil {
		return err
	}
	if len(refs.Branches) > 0 {
		return fmt.Errorf("repository already initialized")
	}

	if author == "" {
		author = DefaultAuthor
	}

	root, err := NewCommit(nil, nil, author, "init: memory repository created", time.Now())
	if err != nil {
		return err
	}
	if err := state.writeCommit(root); err != nil {
		return err
	}

	return state.writeRefs(refsDoc{
		Branches: []*Branch{{
			Name:      DefaultBranch,
			Tip:       root.ID,
			CreatedAt: root.Timestamp,
		}},
		Head: DefaultBranch,
	})
}

// OpenRepository loads a repository from fs, verifying every commit hash.
func OpenRepository(fs billy.Filesystem, opts ...RepositoryOption) (*Repository, error) {
	state, err := newStateStore(fs)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		graph:    NewCommitGraph(),
		state:    state,
		log:      slog.New(slog.DiscardHandler),
		clock:    time.Now,
		branches: make(map[string]*Branch),
		retained: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}

	mat, err := newMaterializer(r.graph)
	if err != nil {
		return nil, err
	}
	r.mat = mat

	commits, err := state.loadCommits()
	if err != nil {
		return nil, err
	}
	if err := r.loadGraph(commits); err != nil {
		return nil, err
	}

	refs, err := state.loadRefs()
	if err != nil {
		return nil, err
	}
	if len(refs.Branches) == 0 {
		return nil, fmt.Errorf("repository not initialized")
	}

	for _, b := range refs.Branches {
		if _, ok := r.graph.Get(b.Tip); !ok {
			return nil, fmt.Errorf("%w: branch %s points to %s", ErrUnknownRef, b.Name, b.Tip)
		}
		r.branches[b.Name] = b
	}
	r.head = refs.Head
	if _, ok := r.branches[r.head]; !ok {
		return nil, fmt.Errorf("%w: HEAD %s", ErrUnknownRef, r.head)
	}

	r.log.Debug("repository opened",
		"commits", r.graph.Len(), "branches", len(r.branches), "head", r.head)
	return r, nil
}

// loadGraph inserts commits in dependency order; parents must land before
// children regardless of directory listing order.
func (r *Repository) loadGraph(commits []*Commit) error {
	pending := commits
	for len(pending) > 0 {
		var stuck []*Commit
		progress := false

		for _, c := range pending {
			ready := true
			for _, p := range c.Parents {
				if _, ok := r.graph.Get(p); !ok {
					ready = false
					break
				}
			}
			if !ready {
				stuck = append(stuck, c)
				continue
			}
			if err := r.graph.Add(c); err != nil {
				return err
			}
			progress = true
		}

		if !progress {
			return fmt.Errorf("%w: %d commits with missing parents", ErrUnknownRef, len(stuck))
		}
		pending = stuck
	}
	return nil
}

func (r *Repository) Graph() *CommitGraph {
	return r.graph
}

// Close releases the state cache. The repository files stay on disk.
func (r *Repository) Close() {
	r.mat.close()
}

// StateAt materializes the full record state at ref.
func (r *Repository) StateAt(ctx context.Context, ref string) (map[string]*MemoryRecord, error) {
	tip, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.mat.stateAt(ctx, tip)
}

// Head returns the current branch and its tip.
func (r *Repository) Head() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head, r.branches[r.head].Tip
}

// SetHead switches the current branch.
func (r *Repository) SetHead(branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[branch]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, branch)
	}
	r.head = branch
	return r.persistRefsLocked()
}

// Resolve maps a ref (branch name, "HEAD", commit id or unique prefix) to a
// commit id.
func (r *Repository) Resolve(ref string) (string, error) {
	r.mu.Lock()
	if ref == "HEAD" || ref == "" {
		ref = r.head
	}
	if b, ok := r.branches[ref]; ok {
		tip := b.Tip
		r.mu.Unlock()
		return tip, nil
	}
	r.mu.Unlock()

	return r.graph.ResolvePrefix(ref)
}

// Branch returns the named branch.
func (r *Repository) Branch(name string) (*Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, name)
	}
	cp := *b
	return &cp, nil
}

// Branches lists all branches sorted by name.
func (r *Repository) Branches() []*Branch {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Branch, 0, len(r.branches))
	for _, b := range r.branches {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateBranch creates a branch pointing at the resolved from ref ("" means
// HEAD).
func (r *Repository) CreateBranch(ctx context.Context, name, from, description string) (*Branch, error) {
	if !ValidRecordID(name) {
		return nil, fmt.Errorf("invalid branch name %q", name)
	}

	tip, err := r.Resolve(from)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	b := &Branch{
		Name:        name,
		Tip:         tip,
		Description: description,
		CreatedAt:   r.clock().UTC(),
	}
	r.branches[name] = b
	if err := r.persistRefsLocked(); err != nil {
		delete(r.branches, name)
		return nil, err
	}

	cp := *b
	return &cp, nil
}

// DeleteBranch removes the branch name. Commits stay in the graph; only the
// pointer goes away.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, name)
	}
	if len(r.branches) == 1 {
		return fmt.Errorf("%w: %s", ErrLastBranch, name)
	}
	if name == r.head {
		return fmt.Errorf("%w: %s is HEAD", ErrBranchInUse, name)
	}
	if r.retained[name] > 0 {
		return fmt.Errorf("%w: %s", ErrBranchInUse, name)
	}

	delete(r.branches, name)
	if err := r.persistRefsLocked(); err != nil {
		r.branches[name] = b
		return err
	}
	return nil
}

// Log walks first-parent history from ref, newest first. limit <= 0 means
// unbounded.
func (r *Repository) Log(ctx context.Context, ref string, limit int) ([]*Commit, error) {
	tip, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chain, err := r.graph.firstParentChain(tip)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(chain) > limit {
		chain = chain[:limit]
	}
	return chain, nil
}

// CommitOps seals operations into a commit on top of expectedTip and
// advances the branch. The commit is fully constructed and durably written
// before the tip moves; if another writer advanced the branch in the
// meantime the caller gets ErrBranchMoved and the new commit stays
// unreferenced in the append-only graph.
func (r *Repository) CommitOps(ctx context.Context, branch, expectedTip string, ops []Operation, author, message string) (*Commit, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyCommit
	}
	if author == "" {
		author = DefaultAuthor
	}

	c, err := NewCommit([]string{expectedTip}, ops, author, message, r.clock())
	if err != nil {
		return nil, err
	}

	if err := r.seal(ctx, c); err != nil {
		return nil, err
	}
	if err := r.advance(ctx, branch, expectedTip, c.ID); err != nil {
		return nil, err
	}

	r.log.Debug("commit", "branch", branch, "commit", c.ShortID(), "ops", len(ops))
	return c, nil
}

// seal validates, appends, and persists a commit without touching any
// branch pointer.
func (r *Repository) seal(ctx context.Context, c *Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.graph.Add(c); err != nil {
		return err
	}
	return r.state.writeCommit(c)
}

// advance is the single atomic branch-pointer update: compare-and-swap the
// tip from expectedTip to newTip.
func (r *Repository) advance(ctx context.Context, branch, expectedTip, newTip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, branch)
	}
	if b.Tip != expectedTip {
		return fmt.Errorf("%w: %s is at %s, expected %s", ErrBranchMoved, branch, b.Tip[:8], expectedTip[:8])
	}

	prev := b.Tip
	b.Tip = newTip
	if err := r.persistRefsLocked(); err != nil {
		b.Tip = prev
		return err
	}
	return nil
}

// ResetBranch force-moves a branch tip to an existing commit. This is the
// one sanctioned non-forward move.
func (r *Repository) ResetBranch(ctx context.Context, branch, to string) error {
	target, err := r.Resolve(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, branch)
	}

	prev := b.Tip
	b.Tip = target
	if err := r.persistRefsLocked(); err != nil {
		b.Tip = prev
		return err
	}

	r.log.Debug("branch reset", "branch", branch, "to", target)
	return nil
}

// IsAncestor reports whether ref a is an ancestor of ref b.
func (r *Repository) IsAncestor(a, b string) (bool, error) {
	ca, err := r.Resolve(a)
	if err != nil {
		return false, err
	}
	cb, err := r.Resolve(b)
	if err != nil {
		return false, err
	}
	return r.graph.IsAncestor(ca, cb)
}

// MergeBase resolves both refs and finds their lowest common ancestor.
func (r *Repository) MergeBase(a, b string) (string, error) {
	ca, err := r.Resolve(a)
	if err != nil {
		return "", err
	}
	cb, err := r.Resolve(b)
	if err != nil {
		return "", err
	}
	return r.graph.MergeBase(ca, cb)
}

func (r *Repository) retainBranch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained[name]++
}

func (r *Repository) releaseBranch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retained[name] > 1 {
		r.retained[name]--
	} else {
		delete(r.retained, name)
	}
}

func (r *Repository) persistRefsLocked() error {
	branches := make([]*Branch, 0, len(r.branches))
	for _, b := range r.branches {
		cp := *b
		branches = append(branches, &cp)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })

	return r.state.writeRefs(refsDoc{Branches: branches, Head: r.head})
}
