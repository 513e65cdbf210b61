package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderConflict formats a conflict for humans: both sides against the
// base, with an inline character diff between ours and theirs when both
// versions exist.
func RenderConflict(c MemoryConflict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "conflict on %q\n", c.ID)
	writeVersion(&b, "base", c.Base)
	writeVersion(&b, "ours", c.Ours)
	writeVersion(&b, "theirs", c.Theirs)

	if c.Ours != nil && c.Theirs != nil && c.Ours.Content != c.Theirs.Content {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(c.Ours.Content, c.Theirs.Content, false)
		dmp.DiffCleanupSemantic(diffs)
		fmt.Fprintf(&b, "  diff (ours -> theirs):\n    %s\n", dmp.DiffPrettyText(diffs))
	}

	return b.String()
}

func writeVersion(b *strings.Builder, label string, rec *MemoryRecord) {
	if rec == nil {
		fmt.Fprintf(b, "  %-6s <absent>\n", label+":")
		return
	}

	fmt.Fprintf(b, "  %-6s %s\n", label+":", rec.Content)
	if len(rec.Properties) == 0 {
		return
	}

	keys := make([]string, 0, len(rec.Properties))
	for k := range rec.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "         %s=%s\n", k, rec.Properties[k])
	}
}
