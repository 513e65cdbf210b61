package internal

import (
	"context"
	"fmt"
	"sort"
)

type MergeStrategy string

const (
	// FastForward only advances the branch pointer; anything that would
	// need a merge commit fails with ErrNonFastForward.
	FastForward MergeStrategy = "fast-forward"
	// PreferOurs resolves every conflict with the into-branch version.
	PreferOurs MergeStrategy = "prefer-ours"
	// PreferTheirs resolves every conflict with the from-branch version.
	PreferTheirs MergeStrategy = "prefer-theirs"
	// Manual surfaces conflicts to the caller, who retries with explicit
	// Resolutions.
	Manual MergeStrategy = "manual"
	// Assisted hands each conflict to a ConflictResolver.
	Assisted MergeStrategy = "assisted"
)

func (s MergeStrategy) Valid() bool {
	switch s {
	case FastForward, PreferOurs, PreferTheirs, Manual, Assisted:
		return true
	}
	return false
}

// MemoryConflict is one record both sides changed in incompatible ways
// since their common ancestor. Any of the three versions may be nil: a nil
// Base means both sides added the id independently, a nil side means that
// side deleted it.
type MemoryConflict struct {
	ID     string        `json:"id"`
	Base   *MemoryRecord `json:"base,omitempty"`
	Ours   *MemoryRecord `json:"ours,omitempty"`
	Theirs *MemoryRecord `json:"theirs,omitempty"`
}

// ConflictResolver decides one conflict. keep=false means the merged state
// drops the record entirely.
type ConflictResolver interface {
	Resolve(ctx context.Context, conflict MemoryConflict) (merged *MemoryRecord, keep bool, err error)
}

// MergeOptions steers Repository.Merge. Resolutions maps a conflicted id to
// its resolved record, nil meaning delete; it is only consulted under the
// Manual strategy.
type MergeOptions struct {
	Strategy    MergeStrategy
	Resolver    ConflictResolver
	Resolutions map[string]*MemoryRecord
	Author      string
	Message     string
}

// MergeResult reports the outcome. Exactly one of three shapes comes back:
// UpToDate (nothing to do), FastForwarded (pointer move, no commit), or a
// merge Commit. Conflicts is only populated alongside ErrMergeConflicts.
type MergeResult struct {
	Commit        *Commit          `json:"commit,omitempty"`
	Tip           string           `json:"tip"`
	UpToDate      bool             `json:"up_to_date,omitempty"`
	FastForwarded bool             `json:"fast_forwarded,omitempty"`
	Conflicts     []MemoryConflict `json:"conflicts,omitempty"`
}

// Merge merges the resolved from ref into the named branch. The three-way
// comparison runs per record against the merge base; records only one side
// touched merge cleanly, records both sides changed identically merge
// cleanly, and the rest are conflicts handled per the strategy. The merge
// commit records the delta against the into tip, so first-parent replay
// reproduces the merged state.
func (r *Repository) Merge(ctx context.Context, into, from string, opts MergeOptions) (*MergeResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = Manual
	}
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q", opts.Strategy)
	}
	if opts.Strategy == Assisted && opts.Resolver == nil {
		return nil, fmt.Errorf("assisted merge needs a resolver")
	}

	b, err := r.Branch(into)
	if err != nil {
		return nil, err
	}
	intoTip := b.Tip

	fromTip, err := r.Resolve(from)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok, err := r.graph.IsAncestor(fromTip, intoTip); err != nil {
		return nil, err
	} else if ok {
		return &MergeResult{Tip: intoTip, UpToDate: true}, nil
	}

	if ok, err := r.graph.IsAncestor(intoTip, fromTip); err != nil {
		return nil, err
	} else if ok {
		if err := r.advance(ctx, into, intoTip, fromTip); err != nil {
			return nil, err
		}
		r.log.Debug("fast-forward", "branch", into, "tip", fromTip)
		return &MergeResult{Tip: fromTip, FastForwarded: true}, nil
	}

	if opts.Strategy == FastForward {
		return nil, fmt.Errorf("%w: %s has diverged from %s", ErrNonFastForward, into, from)
	}

	base, err := r.graph.MergeBase(intoTip, fromTip)
	if err != nil {
		return nil, err
	}

	// Disjoint histories merge against an empty base: every record both
	// sides hold becomes a potential conflict.
	baseState := make(map[string]*MemoryRecord)
	if base != "" {
		if baseState, err = r.mat.stateAt(ctx, base); err != nil {
			return nil, err
		}
	}
	ours, err := r.mat.stateAt(ctx, intoTip)
	if err != nil {
		return nil, err
	}
	theirs, err := r.mat.stateAt(ctx, fromTip)
	if err != nil {
		return nil, err
	}

	merged, conflicts := threeWay(baseState, ours, theirs)

	var unresolved []MemoryConflict
	for _, c := range conflicts {
		rec, keep, err := resolveConflict(ctx, c, opts)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", c.ID, err)
		}
		switch {
		case rec == nil && keep:
			unresolved = append(unresolved, c)
		case rec == nil:
			delete(merged, c.ID)
		default:
			rec = rec.Clone()
			rec.ID = c.ID
			merged[c.ID] = rec
		}
	}
	if len(unresolved) > 0 {
		return &MergeResult{Tip: intoTip, Conflicts: unresolved},
			fmt.Errorf("%w: %d records", ErrMergeConflicts, len(unresolved))
	}

	ops := diffStates(ours, merged)
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("merge: %s into %s", from, into)
	}
	author := opts.Author
	if author == "" {
		author = DefaultAuthor
	}

	c, err := NewCommit([]string{intoTip, fromTip}, ops, author, message, r.clock())
	if err != nil {
		return nil, err
	}
	if err := r.seal(ctx, c); err != nil {
		return nil, err
	}
	if err := r.advance(ctx, into, intoTip, c.ID); err != nil {
		return nil, err
	}

	r.log.Debug("merge", "into", into, "from", from,
		"commit", c.ShortID(), "ops", len(ops), "resolved", len(conflicts))
	return &MergeResult{Commit: c, Tip: c.ID}, nil
}

// threeWay merges per record id. The returned state holds every clean
// outcome; ids both sides changed incompatibly come back as conflicts and
// are left at their base value in the state.
func threeWay(base, ours, theirs map[string]*MemoryRecord) (map[string]*MemoryRecord, []MemoryConflict) {
	ids := make(map[string]bool, len(base)+len(ours)+len(theirs))
	for id := range base {
		ids[id] = true
	}
	for id := range ours {
		ids[id] = true
	}
	for id := range theirs {
		ids[id] = true
	}

	merged := make(map[string]*MemoryRecord, len(ids))
	var conflicts []MemoryConflict

	for id := range ids {
		b, o, t := base[id], ours[id], theirs[id]
		oursChanged := !o.Equal(b)
		theirsChanged := !t.Equal(b)

		var pick *MemoryRecord
		switch {
		case !oursChanged && !theirsChanged:
			pick = b
		case oursChanged && !theirsChanged:
			pick = o
		case !oursChanged:
			pick = t
		case o.Equal(t):
			pick = o
		default:
			conflicts = append(conflicts, MemoryConflict{ID: id, Base: b, Ours: o, Theirs: t})
			pick = b
		}

		if pick != nil {
			merged[id] = pick.Clone()
		}
	}

	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ID < conflicts[j].ID })
	return merged, conflicts
}

// resolveConflict applies the strategy to one conflict. A nil record with
// keep=true means the conflict stays unresolved.
func resolveConflict(ctx context.Context, c MemoryConflict, opts MergeOptions) (*MemoryRecord, bool, error) {
	switch opts.Strategy {
	case PreferOurs:
		return c.Ours, c.Ours != nil, nil
	case PreferTheirs:
		return c.Theirs, c.Theirs != nil, nil
	case Manual:
		rec, ok := opts.Resolutions[c.ID]
		if !ok {
			return nil, true, nil
		}
		return rec, rec != nil, nil
	case Assisted:
		return opts.Resolver.Resolve(ctx, c)
	}
	return nil, true, nil
}

// diffStates computes the operations that turn from into to, sorted by id.
func diffStates(from, to map[string]*MemoryRecord) []Operation {
	var ops []Operation

	for id, rec := range to {
		prev, ok := from[id]
		switch {
		case !ok:
			ops = append(ops, AddOp(rec))
		case !prev.Equal(rec):
			ops = append(ops, UpdateOp(id, rec.Content, rec.Properties))
		}
	}
	for id := range from {
		if _, ok := to[id]; !ok {
			ops = append(ops, DeleteOp(id))
		}
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops
}
