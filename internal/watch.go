package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// RefEvent is one observed branch-table change.
type RefEvent struct {
	Branch  string `json:"branch"`
	OldTip  string `json:"old_tip,omitempty"`
	NewTip  string `json:"new_tip,omitempty"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// RefWatcher observes the repository's refs file and reports branch tip
// movements made by other processes. The refs file is replaced by rename,
// so the watch sits on the parent directory.
type RefWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	log     *slog.Logger

	events chan RefEvent
	last   map[string]string // branch -> tip
}

func NewRefWatcher(repoPath string, log *slog.Logger) (*RefWatcher, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(repoPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", repoPath, err)
	}

	w := &RefWatcher{
		watcher: watcher,
		path:    filepath.Join(repoPath, refsFile),
		log:     log,
		events:  make(chan RefEvent, 16),
		last:    make(map[string]string),
	}
	if tips, err := w.readTips(); err == nil {
		w.last = tips
	}
	return w, nil
}

// Events delivers branch changes until the context given to Run ends.
func (w *RefWatcher) Events() <-chan RefEvent {
	return w.events
}

// Run pumps filesystem events into branch events. It blocks until ctx ends
// or the underlying watcher closes.
func (w *RefWatcher) Run(ctx context.Context) error {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.diff(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *RefWatcher) Close() error {
	return w.watcher.Close()
}

func (w *RefWatcher) diff(ctx context.Context) {
	tips, err := w.readTips()
	if err != nil {
		w.log.Warn("read refs", "err", err)
		return
	}

	for branch, tip := range tips {
		old, ok := w.last[branch]
		switch {
		case !ok:
			w.emit(ctx, RefEvent{Branch: branch, NewTip: tip, Created: true})
		case old != tip:
			w.emit(ctx, RefEvent{Branch: branch, OldTip: old, NewTip: tip})
		}
	}
	for branch, old := range w.last {
		if _, ok := tips[branch]; !ok {
			w.emit(ctx, RefEvent{Branch: branch, OldTip: old, Deleted: true})
		}
	}

	w.last = tips
}

func (w *RefWatcher) emit(ctx context.Context, ev RefEvent) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

func (w *RefWatcher) readTips() (map[string]string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}

	var doc refsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	tips := make(map[string]string, len(doc.Branches))
	for _, b := range doc.Branches {
		tips[b.Name] = b.Tip
	}
	return tips, nil
}
