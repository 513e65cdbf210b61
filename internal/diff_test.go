package internal

import (
	"strings"
	"testing"
)

func TestRenderConflictBothSides(t *testing.T) {
	out := RenderConflict(MemoryConflict{
		ID:     "prefs/editor",
		Base:   &MemoryRecord{ID: "prefs/editor", Content: "uses vim"},
		Ours:   &MemoryRecord{ID: "prefs/editor", Content: "uses vim with lsp"},
		Theirs: &MemoryRecord{ID: "prefs/editor", Content: "uses helix", Properties: map[string]string{"source": "chat"}},
	})

	for _, want := range []string{"prefs/editor", "uses vim", "uses vim with lsp", "uses helix", "source=chat", "diff"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderConflictDeletion(t *testing.T) {
	out := RenderConflict(MemoryConflict{
		ID:   "gone",
		Base: &MemoryRecord{ID: "gone", Content: "was here"},
		Ours: &MemoryRecord{ID: "gone", Content: "still here"},
	})

	if !strings.Contains(out, "<absent>") {
		t.Errorf("expected absent marker:\n%s", out)
	}
	if strings.Contains(out, "diff") {
		t.Errorf("no inline diff expected when a side is missing:\n%s", out)
	}
}
