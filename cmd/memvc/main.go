package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/fang"
	"github.com/memvc/memvc/internal"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	app := newApp()
	defer app.close()

	rootCmd := NewRootCmd(version, app)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

type app struct {
	resolver *internal.ScopeResolver
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*internal.Session

	recordSvc   *internal.RecordService
	historySvc  *internal.HistoryService
	branchSvc   *internal.BranchService
	mergeSvc    *internal.MergeService
	worktreeSvc *internal.WorktreeService
	providerSvc *internal.ProviderService
}

func newApp() *app {
	logger := slog.New(slog.DiscardHandler)
	if os.Getenv("MEMVC_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	a := &app{
		resolver: internal.NewScopeResolver(),
		log:      logger,
		sessions: make(map[string]*internal.Session),
	}

	a.recordSvc = internal.NewRecordService(a.session)
	a.historySvc = internal.NewHistoryService(a.session)
	a.branchSvc = internal.NewBranchService(a.session)
	a.mergeSvc = internal.NewMergeService(a.session)
	a.worktreeSvc = internal.NewWorktreeService(a.session)
	a.providerSvc = internal.NewProviderService(a.resolver)
	return a
}

// session opens the repository for a scope hint once per process.
func (a *app) session(ctx context.Context, scopeHint string) (*internal.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.sessions[scopeHint]; ok {
		return s, nil
	}

	scope := a.resolver.Resolve(scopeHint)
	s, err := internal.OpenSession(ctx, scope, a.log)
	if err != nil {
		return nil, err
	}
	a.sessions[scopeHint] = s
	return s, nil
}

func (a *app) close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.sessions {
		s.Close()
	}
	a.sessions = make(map[string]*internal.Session)
}
