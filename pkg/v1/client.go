// Package v1 is the embeddable client for memvc repositories: versioned,
// branchable memory for agents without going through the CLI.
package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/memvc/memvc/internal"
)

// Client provides programmatic access to a memory repository through its
// own primary worktree.
type Client struct {
	sess       *internal.Session
	author     string
	autoCommit bool
}

// New opens a client. By default it resolves the enclosing project
// repository like the CLI does; WithInMemory skips disk entirely.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		sess *internal.Session
		err  error
	)
	if cfg.inMemory {
		sess, err = openEphemeral(ctx, cfg.author)
	} else {
		scope := internal.NewScopeResolver().Resolve(cfg.scope)
		sess, err = internal.OpenSession(ctx, scope, nil)
	}
	if err != nil {
		return nil, err
	}

	author := cfg.author
	if author == "" {
		author = sess.Config.Author
	}

	return &Client{
		sess:       sess,
		author:     author,
		autoCommit: cfg.autoCommit,
	}, nil
}

// openEphemeral builds a repository on an in-memory filesystem with
// in-memory record stores.
func openEphemeral(ctx context.Context, author string) (*internal.Session, error) {
	fs := memfs.New()
	if err := internal.InitRepository(fs, author); err != nil {
		return nil, err
	}
	repo, err := internal.OpenRepository(fs)
	if err != nil {
		return nil, err
	}

	mgr := internal.NewWorktreeManager(repo, nil)
	branch, _ := repo.Head()
	work, err := mgr.Create(ctx, branch)
	if err != nil {
		repo.Close()
		return nil, err
	}

	cfg := internal.DefaultConfig()
	cfg.Store.Backend = "memory"
	if author != "" {
		cfg.Author = author
	}

	return &internal.Session{
		Config:  cfg,
		Repo:    repo,
		Manager: mgr,
		Work:    work,
	}, nil
}

// Set creates or updates a record.
func (c *Client) Set(ctx context.Context, id, content string, properties map[string]string) error {
	if err := c.sess.Work.Set(ctx, id, content, properties); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if !c.autoCommit {
		return nil
	}

	_, err := c.sess.Work.Commit(ctx, c.author, fmt.Sprintf("set: %s", id))
	return err
}

// Get retrieves a record from the working view.
func (c *Client) Get(ctx context.Context, id string) (Record, error) {
	rec, err := c.sess.Work.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return toRecord(rec), nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.sess.Work.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if !c.autoCommit {
		return nil
	}

	_, err := c.sess.Work.Commit(ctx, c.author, fmt.Sprintf("del: %s", id))
	return err
}

// List returns records whose id starts with prefix, sorted by id.
func (c *Client) List(ctx context.Context, prefix string) ([]Record, error) {
	recs, err := c.sess.Work.Records(ctx, internal.RecordFilter{IDPrefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecord(rec))
	}
	return out, nil
}

// Commit seals the staged operations into a commit on the current branch.
func (c *Client) Commit(ctx context.Context, message string) (Commit, error) {
	commit, err := c.sess.Work.Commit(ctx, c.author, message)
	if err != nil {
		return Commit{}, err
	}
	return toCommit(commit), nil
}

// Log walks first-parent history from ref ("" means the current branch),
// newest first. limit <= 0 means unbounded.
func (c *Client) Log(ctx context.Context, ref string, limit int) ([]Commit, error) {
	commits, err := c.sess.Repo.Log(ctx, ref, limit)
	if err != nil {
		return nil, err
	}

	out := make([]Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toCommit(commit))
	}
	return out, nil
}

// CreateBranch creates a branch at the current tip without switching.
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	_, err := c.sess.Repo.CreateBranch(ctx, name, "", "")
	return err
}

// Checkout switches the working view to ref. force discards staged
// operations; without it a dirty view refuses to switch.
func (c *Client) Checkout(ctx context.Context, ref string, force bool) error {
	result, err := c.sess.Work.Checkout(ctx, ref, force)
	if err != nil {
		return err
	}
	if result.Branch != "" {
		return c.sess.Repo.SetHead(result.Branch)
	}
	return nil
}

// Merge merges from into the current branch. An empty strategy surfaces
// conflicts as an error; prefer-ours and prefer-theirs auto-resolve.
func (c *Client) Merge(ctx context.Context, from, strategy string) error {
	into, _ := c.sess.Repo.Head()
	result, err := c.sess.Repo.Merge(ctx, into, from, internal.MergeOptions{
		Strategy: internal.MergeStrategy(strategy),
		Author:   c.author,
	})
	if err != nil {
		return err
	}
	if result.UpToDate {
		return nil
	}
	_, err = c.sess.Work.Refresh(ctx, false)
	return err
}

// TaskFunc runs against a fork's isolated view. Everything it stages is
// committed and merged back into the parent branch when it returns nil.
type TaskFunc func(ctx context.Context, view *View) error

// View is the record interface handed to fork tasks.
type View struct {
	wt *internal.Worktree
}

func (v *View) Set(ctx context.Context, id, content string, properties map[string]string) error {
	return v.wt.Set(ctx, id, content, properties)
}

func (v *View) Get(ctx context.Context, id string) (Record, error) {
	rec, err := v.wt.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return toRecord(rec), nil
}

func (v *View) Delete(ctx context.Context, id string) error {
	return v.wt.Delete(ctx, id)
}

func (v *View) List(ctx context.Context, prefix string) ([]Record, error) {
	recs, err := v.wt.Records(ctx, internal.RecordFilter{IDPrefix: prefix})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecord(rec))
	}
	return out, nil
}

// Fork branches off the current branch, runs task in an isolated view, and
// merges the result back. strategy "" surfaces conflicts via
// ForkConflicted instead of auto-resolving.
func (c *Client) Fork(ctx context.Context, name string, strategy string, task TaskFunc) (*ForkResult, error) {
	parent, _ := c.sess.Repo.Head()

	result, err := internal.RunSubagent(ctx, c.sess.Repo, c.sess.Manager, parent, internal.SubagentConfig{
		Name:     name,
		Strategy: internal.MergeStrategy(strategy),
		Author:   c.author,
	}, func(ctx context.Context, wt *internal.Worktree) error {
		return task(ctx, &View{wt: wt})
	})
	if err != nil {
		return nil, err
	}

	fr := &ForkResult{
		Status:  ForkStatus(result.Status),
		Branch:  result.Branch,
		TaskErr: result.TaskErr,
	}
	for _, conflict := range result.Conflicts {
		fr.Conflicts = append(fr.Conflicts, conflict.ID)
	}

	if result.Status == internal.SubagentMerged {
		if _, err := c.sess.Work.Refresh(ctx, false); err != nil {
			return fr, err
		}
	}
	return fr, nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, internal.ErrNotFound)
}

// Close releases resources held by the client; repository state stays put.
func (c *Client) Close() error {
	c.sess.Close()
	return nil
}
