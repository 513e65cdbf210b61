package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
)

// headWorktreeID is the fixed id of the scope's primary worktree, the one
// CLI commands operate on. It survives across processes through the
// persisted index and the durable record store.
const headWorktreeID = "head"

// Session is one opened repository scope: configuration, the repository,
// its worktree manager, and the primary worktree checked out on HEAD.
type Session struct {
	Scope   Scope
	Config  *Config
	Repo    *Repository
	Manager *WorktreeManager
	Work    *Worktree
}

// OpenSession opens the repository at scope and attaches the primary
// worktree, resuming a persisted staging index when one exists.
func OpenSession(ctx context.Context, scope Scope, log *slog.Logger) (*Session, error) {
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}

	fs := osfs.New(scope.RepoPath)
	repo, err := OpenRepository(fs, WithLogger(log))
	if err != nil {
		return nil, err
	}

	mgr := NewWorktreeManager(repo, storeFactory(scope, cfg, log))

	work, err := mgr.Resume(ctx, headWorktreeID)
	if errors.Is(err, ErrWorktreeNotFound) {
		branch, _ := repo.Head()
		work, err = mgr.CreateNamed(ctx, headWorktreeID, branch)
	}
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &Session{
		Scope:   scope,
		Config:  cfg,
		Repo:    repo,
		Manager: mgr,
		Work:    work,
	}, nil
}

// Close releases in-process resources; repository state and the primary
// worktree's store stay on disk.
func (s *Session) Close() {
	closeStore(s.Work.Store())
	s.Repo.Close()
}

// storeFactory builds per-worktree record stores per the configured
// backend.
func storeFactory(scope Scope, cfg *Config, log *slog.Logger) StoreFactory {
	if cfg.Store.Backend == "memory" {
		return nil // manager default
	}
	return func(worktreeID string) (RecordStore, error) {
		return NewBadgerStore(BadgerStoreConfig{
			Path:   filepath.Join(scope.StorePath(cfg.Store.Path), worktreeID),
			Logger: log,
		})
	}
}

// ResolverFromConfig builds the assisted-merge resolver from the scope's
// default provider, nil when none is configured.
func ResolverFromConfig(ctx context.Context, cfg *Config) (ConflictResolver, error) {
	name := cfg.DefaultProvider
	if name == "" {
		return nil, nil
	}
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}

	provider, err := NewFantasyProvider(ctx, FantasyConfig{
		Provider: name,
		APIKey:   pc.APIKey,
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return NewAssistedResolver(provider), nil
}
