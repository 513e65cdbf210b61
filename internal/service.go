package internal

import (
	"context"
	"fmt"
	"strings"
)

// SessionFunc opens (or returns a cached) session for a scope hint.
type SessionFunc func(ctx context.Context, scopeHint string) (*Session, error)

// RecordService handles record CRUD against the primary worktree.
type RecordService struct {
	sessionFor SessionFunc
}

func NewRecordService(sessionFor SessionFunc) *RecordService {
	return &RecordService{sessionFor: sessionFor}
}

func (s *RecordService) Set(ctx context.Context, id, content string, properties map[string]string, scopeHint string) error {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return err
	}

	if err := sess.Work.Set(ctx, id, content, properties); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

func (s *RecordService) Get(ctx context.Context, id, scopeHint string) (*MemoryRecord, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Work.Get(ctx, id)
}

func (s *RecordService) Delete(ctx context.Context, id, scopeHint string) error {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return err
	}

	if err := sess.Work.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *RecordService) List(ctx context.Context, prefix, scopeHint string) ([]*MemoryRecord, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Work.Records(ctx, RecordFilter{IDPrefix: prefix})
}

// Search is a keyword scan over the working state.
func (s *RecordService) Search(ctx context.Context, query, scopeHint string) ([]*MemoryRecord, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	all, err := sess.Work.Records(ctx, RecordFilter{})
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []*MemoryRecord
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Content), queryLower) ||
			strings.Contains(strings.ToLower(rec.ID), queryLower) {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// HistoryService handles commits and history walks.
type HistoryService struct {
	sessionFor SessionFunc
}

func NewHistoryService(sessionFor SessionFunc) *HistoryService {
	return &HistoryService{sessionFor: sessionFor}
}

func (s *HistoryService) Commit(ctx context.Context, message, scopeHint string) (*Commit, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Work.Commit(ctx, sess.Config.Author, message)
}

func (s *HistoryService) Log(ctx context.Context, ref string, limit int, scopeHint string) ([]*Commit, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Repo.Log(ctx, ref, limit)
}

func (s *HistoryService) Status(ctx context.Context, scopeHint string) (*WorktreeStatus, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	st := sess.Work.Status()
	return &st, nil
}

func (s *HistoryService) Discard(ctx context.Context, scopeHint string) error {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return err
	}

	return sess.Work.Discard(ctx)
}

// Reset force-moves the current branch to ref and re-checks-out the
// primary worktree.
func (s *HistoryService) Reset(ctx context.Context, ref, scopeHint string) (*CheckoutResult, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	branch := sess.Work.Branch()
	if branch == "" {
		return nil, fmt.Errorf("%w: detached worktree", ErrUnknownRef)
	}
	if err := sess.Repo.ResetBranch(ctx, branch, ref); err != nil {
		return nil, err
	}
	return sess.Work.Refresh(ctx, true)
}

// BranchService handles branch operations.
type BranchService struct {
	sessionFor SessionFunc
}

func NewBranchService(sessionFor SessionFunc) *BranchService {
	return &BranchService{sessionFor: sessionFor}
}

func (s *BranchService) Current(ctx context.Context, scopeHint string) (*Branch, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	name, _ := sess.Repo.Head()
	return sess.Repo.Branch(name)
}

func (s *BranchService) List(ctx context.Context, scopeHint string) ([]*Branch, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Repo.Branches(), nil
}

func (s *BranchService) Create(ctx context.Context, name, from, description, scopeHint string) (*Branch, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	return sess.Repo.CreateBranch(ctx, name, from, description)
}

func (s *BranchService) Delete(ctx context.Context, name, scopeHint string) error {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return err
	}

	return sess.Repo.DeleteBranch(ctx, name)
}

// Switch checks the primary worktree out on ref and, when ref is a branch,
// moves HEAD there.
func (s *BranchService) Switch(ctx context.Context, ref string, force bool, scopeHint string) (*CheckoutResult, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	result, err := sess.Work.Checkout(ctx, ref, force)
	if err != nil {
		return nil, err
	}
	if result.Branch != "" {
		if err := sess.Repo.SetHead(result.Branch); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MergeService handles merges into the current branch.
type MergeService struct {
	sessionFor SessionFunc
}

func NewMergeService(sessionFor SessionFunc) *MergeService {
	return &MergeService{sessionFor: sessionFor}
}

func (s *MergeService) Merge(ctx context.Context, from string, strategy MergeStrategy, scopeHint string) (*MergeResult, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	if strategy == "" {
		strategy = sess.Config.Merge.Strategy
	}

	var resolver ConflictResolver
	if strategy == Assisted {
		resolver, err = ResolverFromConfig(ctx, sess.Config)
		if err != nil {
			return nil, err
		}
		if resolver == nil {
			return nil, fmt.Errorf("assisted merge needs a configured provider")
		}
	}

	into, _ := sess.Repo.Head()
	result, mergeErr := sess.Repo.Merge(ctx, into, from, MergeOptions{
		Strategy: strategy,
		Resolver: resolver,
		Author:   sess.Config.Author,
	})
	if mergeErr != nil {
		return result, mergeErr
	}

	// Bring the working state up to the merged tip.
	if !result.UpToDate {
		if _, err := sess.Work.Refresh(ctx, false); err != nil {
			return result, err
		}
	}
	return result, nil
}

// WorktreeService manages secondary worktrees.
type WorktreeService struct {
	sessionFor SessionFunc
}

func NewWorktreeService(sessionFor SessionFunc) *WorktreeService {
	return &WorktreeService{sessionFor: sessionFor}
}

func (s *WorktreeService) Create(ctx context.Context, branch, scopeHint string) (*Worktree, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	if branch == "" {
		branch, _ = sess.Repo.Head()
	}
	return sess.Manager.Create(ctx, branch)
}

func (s *WorktreeService) List(ctx context.Context, scopeHint string) ([]WorktreeStatus, error) {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return nil, err
	}

	var out []WorktreeStatus
	for _, w := range sess.Manager.List() {
		out = append(out, w.Status())
	}
	return out, nil
}

func (s *WorktreeService) Remove(ctx context.Context, id, scopeHint string) error {
	sess, err := s.sessionFor(ctx, scopeHint)
	if err != nil {
		return err
	}

	if id == headWorktreeID {
		return fmt.Errorf("cannot remove the primary worktree")
	}
	return sess.Manager.Remove(ctx, id)
}

// ProviderService manages language-model provider configuration.
type ProviderService struct {
	resolver *ScopeResolver
}

func NewProviderService(resolver *ScopeResolver) *ProviderService {
	return &ProviderService{resolver: resolver}
}

func (s *ProviderService) List(scopeHint string) ([]string, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	return names, nil
}

func (s *ProviderService) Add(name string, providerCfg ProviderConfig, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	cfg.Providers[name] = providerCfg
	return SaveConfig(scope, cfg)
}

func (s *ProviderService) Remove(name, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	delete(cfg.Providers, name)
	return SaveConfig(scope, cfg)
}

func (s *ProviderService) SetDefault(name, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	if _, exists := cfg.Providers[name]; !exists {
		return fmt.Errorf("provider %q not found", name)
	}

	cfg.DefaultProvider = name
	return SaveConfig(scope, cfg)
}

func (s *ProviderService) Test(ctx context.Context, name, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	providerCfg, exists := cfg.Providers[name]
	if !exists {
		return fmt.Errorf("provider %q not found", name)
	}

	provider, err := NewFantasyProvider(ctx, FantasyConfig{
		Provider: name,
		APIKey:   providerCfg.APIKey,
		BaseURL:  providerCfg.BaseURL,
		Model:    providerCfg.Model,
	})
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	_, err = provider.Complete(ctx, "Say hello")
	return err
}
