package internal

import (
	"errors"
	"testing"
)

func TestIndexStageAndClear(t *testing.T) {
	ix := NewCommitIndex()

	if !ix.Empty() {
		t.Error("fresh index should be empty")
	}

	if err := ix.Stage(AddOp(NewRecord("a", "1"))); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := ix.Stage(DeleteOp("b")); err != nil {
		t.Fatalf("stage: %v", err)
	}

	if ix.Len() != 2 {
		t.Fatalf("len = %d, want 2", ix.Len())
	}

	ix.Clear()
	if !ix.Empty() {
		t.Error("index should be empty after Clear")
	}
}

func TestIndexLastWriteWins(t *testing.T) {
	ix := NewCommitIndex()

	if err := ix.Stage(UpdateOp("k", "v1", nil)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Stage(UpdateOp("k", "v2", nil)); err != nil {
		t.Fatal(err)
	}

	ops := ix.Ops()
	if len(ops) != 1 {
		t.Fatalf("len = %d, want 1", len(ops))
	}
	if ops[0].Content != "v2" {
		t.Errorf("content = %q, want %q", ops[0].Content, "v2")
	}
}

func TestIndexUpdateAfterAddStaysAdd(t *testing.T) {
	ix := NewCommitIndex()

	if err := ix.Stage(AddOp(NewRecord("k", "v1"))); err != nil {
		t.Fatal(err)
	}
	if err := ix.Stage(UpdateOp("k", "v2", map[string]string{"x": "y"})); err != nil {
		t.Fatal(err)
	}

	ops := ix.Ops()
	if len(ops) != 1 {
		t.Fatalf("len = %d, want 1", len(ops))
	}
	if ops[0].Kind != OpAdd {
		t.Errorf("kind = %q, want %q", ops[0].Kind, OpAdd)
	}
	if ops[0].Content != "v2" {
		t.Errorf("content = %q, want %q", ops[0].Content, "v2")
	}
}

func TestIndexAddAfterDeleteRejected(t *testing.T) {
	ix := NewCommitIndex()

	if err := ix.Stage(DeleteOp("k")); err != nil {
		t.Fatal(err)
	}

	err := ix.Stage(AddOp(NewRecord("k", "v")))
	if !errors.Is(err, ErrConflictingStagedOp) {
		t.Errorf("expected ErrConflictingStagedOp, got %v", err)
	}

	// Index is unchanged after the rejection
	ops := ix.Ops()
	if len(ops) != 1 || ops[0].Kind != OpDelete {
		t.Errorf("index changed after rejected stage: %+v", ops)
	}
}

func TestIndexDeleteAfterAdd(t *testing.T) {
	ix := NewCommitIndex()

	if err := ix.Stage(AddOp(NewRecord("k", "v"))); err != nil {
		t.Fatal(err)
	}
	if err := ix.Stage(DeleteOp("k")); err != nil {
		t.Fatal(err)
	}

	ops := ix.Ops()
	if len(ops) != 1 || ops[0].Kind != OpDelete {
		t.Errorf("expected single delete, got %+v", ops)
	}
}

func TestIndexPreservesStagingOrder(t *testing.T) {
	ix := NewCommitIndex()

	for _, id := range []string{"c", "a", "b"} {
		if err := ix.Stage(AddOp(NewRecord(id, "x"))); err != nil {
			t.Fatal(err)
		}
	}
	// Re-staging "c" keeps its original position
	if err := ix.Stage(UpdateOp("c", "y", nil)); err != nil {
		t.Fatal(err)
	}

	ops := ix.Ops()
	for i, want := range []string{"c", "a", "b"} {
		if ops[i].ID != want {
			t.Errorf("ops[%d] = %q, want %q", i, ops[i].ID, want)
		}
	}
}

func TestIndexReplace(t *testing.T) {
	ix := NewCommitIndex()
	if err := ix.Stage(AddOp(NewRecord("old", "x"))); err != nil {
		t.Fatal(err)
	}

	if err := ix.Replace([]Operation{UpdateOp("new", "y", nil)}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	ops := ix.Ops()
	if len(ops) != 1 || ops[0].ID != "new" {
		t.Errorf("expected only the replacement ops, got %+v", ops)
	}
}
