package internal

import (
	"fmt"
	"sync"
)

// CommitGraph is the append-only commit DAG. Commits are addressed by their
// content hash; once inserted they are never mutated or removed, so readers
// only contend on the map itself.
type CommitGraph struct {
	mu      sync.RWMutex
	commits map[string]*Commit
}

func NewCommitGraph() *CommitGraph {
	return &CommitGraph{commits: make(map[string]*Commit)}
}

// Add appends a commit. All parents must already be present; re-adding the
// same id is a no-op.
func (g *CommitGraph) Add(c *Commit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.commits[c.ID]; ok {
		return nil
	}
	for _, p := range c.Parents {
		if _, ok := g.commits[p]; !ok {
			return fmt.Errorf("%w: parent %s", ErrUnknownRef, p)
		}
	}

	g.commits[c.ID] = c
	return nil
}

func (g *CommitGraph) Get(id string) (*Commit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.commits[id]
	return c, ok
}

func (g *CommitGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.commits)
}

// ResolvePrefix finds the commit whose id matches the given full id or
// unique prefix of at least 6 characters.
func (g *CommitGraph) ResolvePrefix(ref string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.commits[ref]; ok {
		return ref, nil
	}
	if len(ref) < 6 {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}

	match := ""
	for id := range g.commits {
		if len(id) >= len(ref) && id[:len(ref)] == ref {
			if match != "" {
				return "", fmt.Errorf("%w: ambiguous prefix %s", ErrUnknownRef, ref)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return match, nil
}

// IsAncestor reports whether a is reachable from b through parent links.
// Every commit is an ancestor of itself.
func (g *CommitGraph) IsAncestor(a, b string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.commits[a]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRef, a)
	}
	if _, ok := g.commits[b]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRef, b)
	}

	if a == b {
		return true, nil
	}

	seen := map[string]bool{b: true}
	queue := []string{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.commits[cur].Parents {
			if p == a {
				return true, nil
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// MergeBase finds the nearest common ancestor of a and b. Both frontiers
// expand one full BFS generation per round; the first round whose seen sets
// intersect yields the base, with the lowest commit id breaking ties. The
// result is independent of argument order. Returns "" when the histories
// share no root.
func (g *CommitGraph) MergeBase(a, b string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.commits[a]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, a)
	}
	if _, ok := g.commits[b]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, b)
	}

	if a == b {
		return a, nil
	}

	seenA := map[string]bool{a: true}
	seenB := map[string]bool{b: true}
	frontierA := []string{a}
	frontierB := []string{b}

	for len(frontierA) > 0 || len(frontierB) > 0 {
		frontierA = g.expandGeneration(frontierA, seenA)
		frontierB = g.expandGeneration(frontierB, seenB)

		base := ""
		for id := range seenA {
			if seenB[id] && (base == "" || id < base) {
				base = id
			}
		}
		if base != "" {
			return base, nil
		}
	}

	return "", nil
}

// expandGeneration advances a BFS frontier by one generation of parents.
// Callers hold g.mu.
func (g *CommitGraph) expandGeneration(frontier []string, seen map[string]bool) []string {
	var next []string
	for _, id := range frontier {
		for _, p := range g.commits[id].Parents {
			if !seen[p] {
				seen[p] = true
				next = append(next, p)
			}
		}
	}
	return next
}

// firstParentChain walks the commit's own lineage from tip to root.
func (g *CommitGraph) firstParentChain(id string) ([]*Commit, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var chain []*Commit
	cur := id
	for cur != "" {
		c, ok := g.commits[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRef, cur)
		}
		chain = append(chain, c)
		cur = c.FirstParent()
	}
	return chain, nil
}
