package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	commitsDir = "commits"
	indexDir   = "index"
	refsFile   = "refs.json"
	configFile = "config.yaml"
)

// refsDoc is the durable branch table plus HEAD.
type refsDoc struct {
	Branches []*Branch `json:"branches"`
	Head     string    `json:"head"`
}

// stateStore persists commits and refs through a billy filesystem, osfs in
// the CLI and memfs in tests. All filesystem access is serialized: memfs is
// not goroutine-safe, and concurrent commits write through this store from
// outside the repository lock.
type stateStore struct {
	mu sync.Mutex
	fs billy.Filesystem
}

func newStateStore(fs billy.Filesystem) (*stateStore, error) {
	if err := fs.MkdirAll(commitsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create commits dir: %w", err)
	}
	if err := fs.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &stateStore{fs: fs}, nil
}

func (s *stateStore) writeCommit(c *Commit) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(commitsDir, c.ID+".json")
	if err := util.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write commit: %w", err)
	}
	return nil
}

// loadCommits reads and verifies every stored commit.
func (s *stateStore) loadCommits() ([]*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.fs.ReadDir(commitsDir)
	if err != nil {
		return nil, fmt.Errorf("read commits dir: %w", err)
	}

	var commits []*Commit
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != ".json" {
			continue
		}

		data, err := util.ReadFile(s.fs, filepath.Join(commitsDir, info.Name()))
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", info.Name(), err)
		}

		var c Commit
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode commit %s: %w", info.Name(), err)
		}
		if err := c.Verify(); err != nil {
			return nil, err
		}
		commits = append(commits, &c)
	}
	return commits, nil
}

// writeRefs replaces the branch table atomically via temp file + rename, so
// a crash mid-write never leaves a torn refs file.
func (s *stateStore) writeRefs(doc refsDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode refs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := refsFile + ".tmp"
	if err := util.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write refs: %w", err)
	}
	if err := s.fs.Rename(tmp, refsFile); err != nil {
		return fmt.Errorf("replace refs: %w", err)
	}
	return nil
}

func (s *stateStore) loadRefs() (refsDoc, error) {
	var doc refsDoc

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := util.ReadFile(s.fs, refsFile)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read refs: %w", err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode refs: %w", err)
	}
	return doc, nil
}

// persistedIndex is a worktree's staged operations on disk.
type persistedIndex struct {
	Branch  string      `json:"branch,omitempty"`
	Base    string      `json:"base"`
	Updated time.Time   `json:"updated"`
	Ops     []Operation `json:"ops"`
}

func (s *stateStore) listIndexes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.fs.ReadDir(indexDir)
	if err != nil {
		return nil, fmt.Errorf("read index dir: %w", err)
	}

	var ids []string
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != ".json" {
			continue
		}
		ids = append(ids, info.Name()[:len(info.Name())-len(".json")])
	}
	return ids, nil
}

func (s *stateStore) writeIndex(worktreeID string, idx persistedIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(indexDir, worktreeID+".json")
	if err := util.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *stateStore) loadIndex(worktreeID string) (persistedIndex, bool, error) {
	var idx persistedIndex

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := util.ReadFile(s.fs, filepath.Join(indexDir, worktreeID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return idx, false, nil
	}
	if err != nil {
		return idx, false, fmt.Errorf("read index: %w", err)
	}

	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, false, fmt.Errorf("decode index: %w", err)
	}
	return idx, true, nil
}

func (s *stateStore) removeIndex(worktreeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(filepath.Join(indexDir, worktreeID+".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index: %w", err)
	}
	return nil
}
