package util

import (
	"strings"
	"testing"
)

func TestPreviewShortContentUnchanged(t *testing.T) {
	if out := Preview("short content", 200); out != "short content" {
		t.Fatalf("unexpected preview: %q", out)
	}
}

func TestPreviewTruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("x", 300)
	out := Preview(long, 200)
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected ellipsis suffix, got: %q", out)
	}
	if len([]rune(out)) != 203 {
		t.Fatalf("expected 200 runes plus ellipsis, got %d", len([]rune(out)))
	}
}
