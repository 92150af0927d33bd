package batch

import (
	"fmt"
	"strings"
	"testing"
)

func TestPrepare_PacksInOrderUnderBound(t *testing.T) {
	items := []Item{
		{Path: "a.go", Content: strings.Repeat("a\n", 20)},
		{Path: "b.go", Content: strings.Repeat("b\n", 20)},
		{Path: "c.go", Content: strings.Repeat("c\n", 20)},
	}

	batches := Prepare(items, 10000)
	if len(batches) != 1 {
		t.Fatalf("batch count = %d, want 1", len(batches))
	}

	b := batches[0]
	if len(b.Items) != 3 {
		t.Errorf("items in batch = %d, want 3", len(b.Items))
	}
	// Input order preserved
	aIdx := strings.Index(b.Content, "<<<BEGIN a.go>>>")
	bIdx := strings.Index(b.Content, "<<<BEGIN b.go>>>")
	cIdx := strings.Index(b.Content, "<<<BEGIN c.go>>>")
	if !(aIdx >= 0 && aIdx < bIdx && bIdx < cIdx) {
		t.Errorf("items out of order: a=%d b=%d c=%d", aIdx, bIdx, cIdx)
	}
	if b.TokensEstimate != len(b.Content)/4 {
		t.Errorf("TokensEstimate = %d, want %d", b.TokensEstimate, len(b.Content)/4)
	}
}

func TestPrepare_SplitsWhenItemWouldOverflow(t *testing.T) {
	// Each formatted item is ~120 chars; bound fits two but not three.
	items := []Item{
		{Path: "one", Content: strings.Repeat("1", 80)},
		{Path: "two", Content: strings.Repeat("2", 80)},
		{Path: "three", Content: strings.Repeat("3", 80)},
	}
	maxChars := 2 * len(formatItem(items[0]))

	batches := Prepare(items, maxChars)
	if len(batches) != 2 {
		t.Fatalf("batch count = %d, want 2", len(batches))
	}
	if len(batches[0].Items) != 2 || len(batches[1].Items) != 1 {
		t.Errorf("batch sizes = %d,%d, want 2,1", len(batches[0].Items), len(batches[1].Items))
	}
	for i, b := range batches {
		if len(b.Content) > maxChars {
			t.Errorf("batch %d content length %d exceeds bound %d", i, len(b.Content), maxChars)
		}
	}
}

func TestPrepare_OversizedItemEmittedAloneTruncated(t *testing.T) {
	maxChars := 400
	lines := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		lines = append(lines, fmt.Sprintf("line %02d of the oversized artifact", i))
	}
	big := Item{Path: "huge.log", Content: strings.Join(lines, "\n")}
	small := Item{Path: "small.md", Content: "tiny\n"}

	// Oversized item is ~3x the bound; a normal item follows.
	batches := Prepare([]Item{big, small}, maxChars)
	if len(batches) != 2 {
		t.Fatalf("batch count = %d, want 2 (oversized alone, then the rest)", len(batches))
	}

	tb := batches[0]
	if !tb.Truncated {
		t.Error("oversized batch should be marked truncated")
	}
	if len(tb.Items) != 1 {
		t.Errorf("oversized batch items = %d, want 1", len(tb.Items))
	}
	if len(tb.Content) > maxChars {
		t.Errorf("truncated content length %d exceeds bound %d", len(tb.Content), maxChars)
	}
	if !strings.Contains(tb.Content, TruncationMarker) {
		t.Error("truncation marker missing")
	}

	// The last content line before the marker is a complete source line.
	body := tb.Content
	body = body[strings.Index(body, ">>>\n")+4:] // strip begin marker
	markerIdx := strings.Index(body, TruncationMarker)
	if markerIdx < 0 {
		t.Fatal("marker not found in body")
	}
	kept := strings.TrimRight(body[:markerIdx], "\n")
	keptLines := strings.Split(kept, "\n")
	lastLine := keptLines[len(keptLines)-1]
	found := false
	for _, l := range lines {
		if l == lastLine {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("last kept line %q is not a complete source line", lastLine)
	}

	// Remaining items still batched normally afterward
	if batches[1].Truncated || len(batches[1].Items) != 1 || batches[1].Items[0].Path != "small.md" {
		t.Errorf("second batch = %+v, want small.md alone untruncated", batches[1])
	}
}

func TestPrepare_BoundRespectedAcrossMixedInput(t *testing.T) {
	maxChars := 500
	var items []Item
	for i := 0; i < 10; i++ {
		size := 50 + i*40 // some will overflow the bound on their own
		items = append(items, Item{
			Path:    fmt.Sprintf("f%d.txt", i),
			Content: strings.Repeat(fmt.Sprintf("%d", i%10)+"\n", size/2),
		})
	}

	for _, b := range Prepare(items, maxChars) {
		if len(b.Content) > maxChars {
			t.Errorf("batch with %d items has length %d > bound %d (truncated=%v)",
				len(b.Items), len(b.Content), maxChars, b.Truncated)
		}
	}
}

func TestPrepare_EmptyAndDegenerate(t *testing.T) {
	if got := Prepare(nil, 100); got != nil {
		t.Errorf("Prepare(nil) = %v, want nil", got)
	}
	if got := Prepare([]Item{{Path: "x", Content: "y"}}, 0); got != nil {
		t.Errorf("Prepare with zero bound = %v, want nil", got)
	}
}

func TestFormatItem_BoundaryMarkers(t *testing.T) {
	got := formatItem(Item{Path: "src/order/repo.ts", Content: "export class OrderRepo {}"})
	want := "<<<BEGIN src/order/repo.ts>>>\nexport class OrderRepo {}\n<<<END src/order/repo.ts>>>\n"
	if got != want {
		t.Errorf("formatItem = %q, want %q", got, want)
	}
}
