package internal

import (
	"context"
	"errors"
	"testing"
)

func TestValidRecordID(t *testing.T) {
	valid := []string{"a", "notes/meeting", "task-1", "user.prefs", "A2/b_x"}
	for _, id := range valid {
		if !ValidRecordID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{"", ".hidden", "-lead", "/abs", "has space", "emo🧠ji"}
	for _, id := range invalid {
		if ValidRecordID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := NewRecord("prefs/editor", "uses vim")
	rec.Properties = map[string]string{"source": "observation"}

	clone := rec.Clone()
	clone.Content = "uses emacs"
	clone.Properties["source"] = "assumption"

	if rec.Content != "uses vim" {
		t.Errorf("clone mutated original content: %q", rec.Content)
	}
	if rec.Properties["source"] != "observation" {
		t.Errorf("clone mutated original properties: %q", rec.Properties["source"])
	}
}

func TestRecordEqualIgnoresTimestamps(t *testing.T) {
	a := NewRecord("k", "v")
	b := a.Clone()
	b.LastModified = b.LastModified.Add(1000)

	if !a.Equal(b) {
		t.Error("expected records with same content to be equal")
	}

	b.Content = "other"
	if a.Equal(b) {
		t.Error("expected records with different content to differ")
	}
}

func TestRecordFilter(t *testing.T) {
	rec := &MemoryRecord{
		ID:         "notes/standup",
		Content:    "deploy friday",
		Properties: map[string]string{"topic": "release"},
	}

	tests := []struct {
		name   string
		filter RecordFilter
		want   bool
	}{
		{"zero matches all", RecordFilter{}, true},
		{"prefix hit", RecordFilter{IDPrefix: "notes/"}, true},
		{"prefix miss", RecordFilter{IDPrefix: "tasks/"}, false},
		{"prefix longer than id", RecordFilter{IDPrefix: "notes/standup-extended"}, false},
		{"property key", RecordFilter{PropertyKey: "topic"}, true},
		{"property key miss", RecordFilter{PropertyKey: "owner"}, false},
		{"property value", RecordFilter{PropertyKey: "topic", PropertyVal: "release"}, true},
		{"property value miss", RecordFilter{PropertyKey: "topic", PropertyVal: "infra"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := NewRecord("task/1", "review pr")
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "task/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "review pr" {
		t.Errorf("content = %q, want %q", got.Content, "review pr")
	}

	// Returned record is a copy
	got.Content = "mutated"
	again, _ := store.Get(ctx, "task/1")
	if again.Content != "review pr" {
		t.Error("store handed out a shared record")
	}

	found, err := store.Delete(ctx, "task/1")
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	found, err = store.Delete(ctx, "task/1")
	if err != nil || found {
		t.Fatalf("second delete: found=%v err=%v", found, err)
	}
}

func TestMemStoreQuerySorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	for _, id := range []string{"c", "a", "b"} {
		if err := store.Put(ctx, NewRecord(id, "x")); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := store.Query(ctx, RecordFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if recs[i].ID != want {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i].ID, want)
		}
	}
}
