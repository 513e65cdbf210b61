package internal

import (
	"os"
	"path/filepath"
)

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

// repoDirName is the on-disk repository directory, found by walking up
// from the working directory like git does.
const repoDirName = ".memvc"

type Scope struct {
	Type     ScopeType
	Path     string // working directory root
	RepoPath string // .memvc directory path
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.RepoPath, configFile)
}

func (s Scope) StorePath(rel string) string {
	return filepath.Join(s.RepoPath, rel)
}

func (s Scope) RefsPath() string {
	return filepath.Join(s.RepoPath, refsFile)
}

type ScopeResolver struct {
	homeDir string
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	return &ScopeResolver{homeDir: home}
}

func (r *ScopeResolver) Global() Scope {
	repoPath := filepath.Join(r.homeDir, repoDirName)
	return Scope{
		Type:     ScopeGlobal,
		Path:     r.homeDir,
		RepoPath: repoPath,
	}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return Scope{}, false
	}
	return r.findProjectScope(cwd)
}

func (r *ScopeResolver) findProjectScope(dir string) (Scope, bool) {
	for {
		repoPath := filepath.Join(dir, repoDirName)
		info, err := os.Stat(repoPath)
		if err == nil && info.IsDir() {
			return Scope{Type: ScopeProject, Path: dir, RepoPath: repoPath}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Resolve picks the enclosing project repository when one exists, the
// global one otherwise. "global" forces the latter.
func (r *ScopeResolver) Resolve(explicit string) Scope {
	if explicit == "global" {
		return r.Global()
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	return r.Global()
}
