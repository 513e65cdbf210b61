package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func projectScope(t *testing.T) Scope {
	t.Helper()

	tmpDir := t.TempDir()
	repoPath := filepath.Join(tmpDir, ".memvc")
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	return Scope{
		Type:     ScopeProject,
		Path:     tmpDir,
		RepoPath: repoPath,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Author != DefaultAuthor {
		t.Errorf("author = %q, want %q", cfg.Author, DefaultAuthor)
	}
	if cfg.DefaultBranch != DefaultBranch {
		t.Errorf("default branch = %q, want %q", cfg.DefaultBranch, DefaultBranch)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("store backend = %q, want %q", cfg.Store.Backend, "badger")
	}
	if cfg.Merge.Strategy != Manual {
		t.Errorf("merge strategy = %q, want %q", cfg.Merge.Strategy, Manual)
	}
	if cfg.Providers == nil {
		t.Error("expected providers map to be initialized")
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	scope := projectScope(t)

	cfg := DefaultConfig()
	cfg.Author = "planner"
	cfg.Merge.Strategy = PreferTheirs
	cfg.DefaultProvider = "openai"
	cfg.Providers["openai"] = ProviderConfig{
		APIKey: "sk-test",
		Model:  "gpt-4o",
	}

	if err := SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Author != "planner" {
		t.Errorf("author = %q, want %q", loaded.Author, "planner")
	}
	if loaded.Merge.Strategy != PreferTheirs {
		t.Errorf("merge strategy = %q, want %q", loaded.Merge.Strategy, PreferTheirs)
	}
	if loaded.DefaultProvider != "openai" {
		t.Errorf("default provider = %q, want %q", loaded.DefaultProvider, "openai")
	}
	if p, ok := loaded.Providers["openai"]; !ok {
		t.Error("expected provider 'openai' to exist")
	} else {
		if p.APIKey != "sk-test" {
			t.Errorf("api key = %q, want %q", p.APIKey, "sk-test")
		}
		if p.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q", p.Model, "gpt-4o")
		}
	}
}

func TestLoadConfigMissing(t *testing.T) {
	scope := projectScope(t)

	cfg, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Should return default config when file doesn't exist
	if cfg.Store.Backend != "badger" {
		t.Errorf("expected default backend, got %q", cfg.Store.Backend)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	scope := projectScope(t)

	if err := os.WriteFile(scope.ConfigPath(), []byte("{{invalid yaml:::"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadConfig(scope)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigUnknownStrategy(t *testing.T) {
	scope := projectScope(t)

	if err := os.WriteFile(scope.ConfigPath(), []byte("merge:\n  strategy: yolo\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadConfig(scope)
	if err == nil {
		t.Error("expected error for unknown merge strategy")
	}
}

func TestConfigDefaultValues(t *testing.T) {
	scope := projectScope(t)

	// Write minimal config with only the backend set
	if err := os.WriteFile(scope.ConfigPath(), []byte("store:\n  backend: memory\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %q, want %q", cfg.Store.Backend, "memory")
	}
	if cfg.Author != DefaultAuthor {
		t.Errorf("author = %q, want default %q", cfg.Author, DefaultAuthor)
	}
	if cfg.Providers == nil {
		t.Error("expected providers to be initialized")
	}
}
