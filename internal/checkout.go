package internal

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/ristretto"
)

// materializer reconstructs the record state at any commit by replaying
// first-parent history from the root. Merge commits carry the full delta
// against their first parent, so the first-parent walk is sufficient.
// Reconstructed states are cached by commit id; the graph is append-only,
// so cached states never go stale.
type materializer struct {
	graph *CommitGraph
	cache *ristretto.Cache
}

func newMaterializer(graph *CommitGraph) (*materializer, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create state cache: %w", err)
	}
	return &materializer{graph: graph, cache: cache}, nil
}

func (m *materializer) close() {
	m.cache.Close()
}

// stateAt returns the record state at commitID. The returned map is the
// caller's to mutate.
func (m *materializer) stateAt(ctx context.Context, commitID string) (map[string]*MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chain, err := m.graph.firstParentChain(commitID)
	if err != nil {
		return nil, err
	}

	// Find the deepest cached ancestor and replay only the commits above it.
	state := make(map[string]*MemoryRecord)
	start := len(chain) // index into chain (tip first); replay chain[:start]
	for i, c := range chain {
		if cached, ok := m.cache.Get(c.ID); ok {
			state = cloneState(cached.(map[string]*MemoryRecord))
			start = i
			break
		}
	}

	for i := start - 1; i >= 0; i-- {
		c := chain[i]
		for _, op := range c.Operations {
			applyOp(state, op, c.Timestamp)
		}
		m.cache.Set(c.ID, cloneState(state), int64(len(state)+1))
	}

	return state, nil
}

func cloneState(state map[string]*MemoryRecord) map[string]*MemoryRecord {
	out := make(map[string]*MemoryRecord, len(state))
	for id, rec := range state {
		out[id] = rec.Clone()
	}
	return out
}

// CheckoutResult describes how a checkout changed the live store.
type CheckoutResult struct {
	Branch   string   `json:"branch,omitempty"`
	Previous string   `json:"previous"`
	Tip      string   `json:"tip"`
	Added    []string `json:"added,omitempty"`
	Updated  []string `json:"updated,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

func (cr *CheckoutResult) Changed() int {
	return len(cr.Added) + len(cr.Updated) + len(cr.Deleted)
}

// syncStore makes store match target: records only in target are added,
// records that differ are overwritten, records absent from target are
// deleted. Returns the change sets sorted by id.
func syncStore(ctx context.Context, store RecordStore, target map[string]*MemoryRecord) (added, updated, deleted []string, err error) {
	existing, err := store.Query(ctx, RecordFilter{})
	if err != nil {
		return nil, nil, nil, err
	}

	current := make(map[string]*MemoryRecord, len(existing))
	for _, rec := range existing {
		current[rec.ID] = rec
	}

	for id, rec := range target {
		prev, ok := current[id]
		switch {
		case !ok:
			added = append(added, id)
		case !prev.Equal(rec):
			updated = append(updated, id)
		default:
			continue
		}
		if err := store.Put(ctx, rec.Clone()); err != nil {
			return nil, nil, nil, err
		}
	}

	for id := range current {
		if _, ok := target[id]; ok {
			continue
		}
		if _, err := store.Delete(ctx, id); err != nil {
			return nil, nil, nil, err
		}
		deleted = append(deleted, id)
	}

	sort.Strings(added)
	sort.Strings(updated)
	sort.Strings(deleted)
	return added, updated, deleted, nil
}
