package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/memvc/memvc/internal"
)

func newTestSession(t *testing.T) *internal.Session {
	t.Helper()

	tmpDir := t.TempDir()
	scope := internal.Scope{
		Type:     internal.ScopeProject,
		Path:     tmpDir,
		RepoPath: filepath.Join(tmpDir, ".memvc"),
	}

	if err := os.MkdirAll(scope.RepoPath, 0755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	if err := internal.InitRepository(osfs.New(scope.RepoPath), "tester"); err != nil {
		t.Fatalf("init repo: %v", err)
	}

	cfg := internal.DefaultConfig()
	cfg.Author = "tester"
	cfg.Store.Backend = "memory"
	if err := internal.SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	sess, err := internal.OpenSession(context.Background(), scope, nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(sess.Close)
	return sess
}

func sessionFor(sess *internal.Session) internal.SessionFunc {
	return func(ctx context.Context, scopeHint string) (*internal.Session, error) {
		return sess, nil
	}
}

func TestSetCmd(t *testing.T) {
	sess := newTestSession(t)
	svc := internal.NewRecordService(sessionFor(sess))

	cmd := NewSetCmd(func() *internal.RecordService { return svc })
	cmd.Flags().String("scope", "", "")
	cmd.SetArgs([]string{"notes/greeting", "hello world"})

	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	rec, err := sess.Work.Get(context.Background(), "notes/greeting")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Content != "hello world" {
		t.Errorf("content = %q, want %q", rec.Content, "hello world")
	}

	if !strings.Contains(out.String(), "Staged notes/greeting") {
		t.Errorf("output = %q, want staged confirmation", out.String())
	}
}

func TestSetCmdProperties(t *testing.T) {
	sess := newTestSession(t)
	svc := internal.NewRecordService(sessionFor(sess))

	cmd := NewSetCmd(func() *internal.RecordService { return svc })
	cmd.Flags().String("scope", "", "")
	cmd.SetArgs([]string{"task/1", "do the thing", "-p", "priority=high", "-p", "owner=alex"})

	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	rec, err := sess.Work.Get(context.Background(), "task/1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Properties["priority"] != "high" || rec.Properties["owner"] != "alex" {
		t.Errorf("properties = %v", rec.Properties)
	}
}

func TestSetCmdBadProperty(t *testing.T) {
	sess := newTestSession(t)
	svc := internal.NewRecordService(sessionFor(sess))

	cmd := NewSetCmd(func() *internal.RecordService { return svc })
	cmd.Flags().String("scope", "", "")
	cmd.SetArgs([]string{"task/2", "content", "-p", "noequalsign"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for malformed property")
	}
}
