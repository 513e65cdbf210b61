package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScopeConfigPath(t *testing.T) {
	scope := Scope{RepoPath: "/home/user/.memvc"}
	expected := "/home/user/.memvc/config.yaml"
	if scope.ConfigPath() != expected {
		t.Errorf("expected %q, got %q", expected, scope.ConfigPath())
	}
}

func TestScopeStorePath(t *testing.T) {
	scope := Scope{RepoPath: "/home/user/.memvc"}
	expected := "/home/user/.memvc/store"
	if scope.StorePath("store") != expected {
		t.Errorf("expected %q, got %q", expected, scope.StorePath("store"))
	}
}

func TestScopeResolverGlobal(t *testing.T) {
	resolver := NewScopeResolver()
	scope := resolver.Global()

	if scope.Type != ScopeGlobal {
		t.Errorf("expected ScopeGlobal, got %q", scope.Type)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".memvc")
	if scope.RepoPath != expected {
		t.Errorf("expected RepoPath %q, got %q", expected, scope.RepoPath)
	}
}

func TestScopeResolverProjectNotFound(t *testing.T) {
	tmp := t.TempDir()
	orig, _ := os.Getwd()
	defer func() { _ = os.Chdir(orig) }()

	_ = os.Chdir(tmp)

	resolver := NewScopeResolver()
	_, found := resolver.Project()
	if found {
		t.Error("expected Project() to return false when no .memvc exists")
	}
}

func TestScopeResolverProjectFound(t *testing.T) {
	tmp := t.TempDir()
	repoDir := filepath.Join(tmp, ".memvc")
	if err := os.Mkdir(repoDir, 0755); err != nil {
		t.Fatal(err)
	}

	orig, _ := os.Getwd()
	defer func() { _ = os.Chdir(orig) }()

	_ = os.Chdir(tmp)

	resolver := NewScopeResolver()
	scope, found := resolver.Project()
	if !found {
		t.Fatal("expected Project() to return true")
	}

	if scope.Type != ScopeProject {
		t.Errorf("expected ScopeProject, got %q", scope.Type)
	}

	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedDir, _ := filepath.EvalSymlinks(repoDir)
	actualDir, _ := filepath.EvalSymlinks(scope.RepoPath)
	if actualDir != expectedDir {
		t.Errorf("expected RepoPath %q, got %q", expectedDir, actualDir)
	}
}

func TestScopeResolverProjectInParent(t *testing.T) {
	tmp := t.TempDir()
	repoDir := filepath.Join(tmp, ".memvc")
	if err := os.Mkdir(repoDir, 0755); err != nil {
		t.Fatal(err)
	}
	subDir := filepath.Join(tmp, "sub", "dir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	orig, _ := os.Getwd()
	defer func() { _ = os.Chdir(orig) }()

	_ = os.Chdir(subDir)

	resolver := NewScopeResolver()
	scope, found := resolver.Project()
	if !found {
		t.Fatal("expected Project() to find .memvc in parent")
	}

	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedPath, _ := filepath.EvalSymlinks(tmp)
	actualPath, _ := filepath.EvalSymlinks(scope.Path)
	if actualPath != expectedPath {
		t.Errorf("expected Path %q, got %q", expectedPath, actualPath)
	}
}

func TestScopeResolverResolveExplicitGlobal(t *testing.T) {
	resolver := NewScopeResolver()
	scope := resolver.Resolve("global")
	if scope.Type != ScopeGlobal {
		t.Errorf("expected ScopeGlobal, got %q", scope.Type)
	}
}

func TestScopeResolverResolveFallbackToGlobal(t *testing.T) {
	tmp := t.TempDir()
	orig, _ := os.Getwd()
	defer func() { _ = os.Chdir(orig) }()

	_ = os.Chdir(tmp)

	resolver := NewScopeResolver()
	scope := resolver.Resolve("")
	if scope.Type != ScopeGlobal {
		t.Errorf("expected fallback to ScopeGlobal, got %q", scope.Type)
	}
}
