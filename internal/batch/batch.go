// Package batch packs prioritized source artifacts into size-bounded bundles
// suitable for one analyzer call each. Packing is a pure transformation: the
// caller supplies items already in priority order and the batcher never
// reorders them.
package batch

import (
	"fmt"
	"strings"
)

// TruncationMarker is appended when a single oversized item is cut down.
const TruncationMarker = "[... truncated ...]"

// Item is one source artifact to feed the analyzer.
type Item struct {
	// Path identifies the artifact so the analyzer can attribute facts back
	// to a source. For session logs this is a label, not a file path.
	Path string

	// Category is the scanner's coarse classification (source, config, docs...).
	Category string

	// Content is the raw text content.
	Content string

	// Size is the artifact's size in bytes, informational.
	Size int
}

// Batch is one analyzer-call-sized bundle.
type Batch struct {
	Items          []Item
	Content        string // concatenated formatted items
	TokensEstimate int    // rough: len(Content)/4
	Truncated      bool   // true when a single over-bound item was cut
}

// Prepare packs items, in input order, into batches whose content length stays
// within maxChars. A single item whose formatted content alone exceeds the
// bound is emitted alone in its own batch, truncated at the last line boundary
// before the limit.
func Prepare(items []Item, maxChars int) []Batch {
	if maxChars <= 0 || len(items) == 0 {
		return nil
	}

	var batches []Batch
	var current []Item
	var content strings.Builder

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, finish(current, content.String(), false))
		current = nil
		content.Reset()
	}

	for _, item := range items {
		formatted := formatItem(item)

		if len(formatted) > maxChars {
			// Oversized single item: close the running batch, emit it alone.
			flush()
			batches = append(batches, finish([]Item{item}, truncateItem(item, maxChars), true))
			continue
		}

		if content.Len()+len(formatted) > maxChars {
			flush()
		}
		current = append(current, item)
		content.WriteString(formatted)
	}
	flush()

	return batches
}

func finish(items []Item, content string, truncated bool) Batch {
	return Batch{
		Items:          items,
		Content:        content,
		TokensEstimate: len(content) / 4,
		Truncated:      truncated,
	}
}

// formatItem wraps content with explicit begin/end boundary markers carrying
// the identifying path so extracted facts stay attributable.
func formatItem(item Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<<<BEGIN %s>>>\n", item.Path)
	b.WriteString(item.Content)
	if !strings.HasSuffix(item.Content, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "<<<END %s>>>\n", item.Path)
	return b.String()
}

// truncateItem formats a single over-bound item so the result fits maxChars,
// cutting at the last line boundary before the limit, never mid-line.
func truncateItem(item Item, maxChars int) string {
	begin := fmt.Sprintf("<<<BEGIN %s>>>\n", item.Path)
	end := fmt.Sprintf("<<<END %s>>>\n", item.Path)
	budget := maxChars - len(begin) - len(end) - len(TruncationMarker) - 2 // newlines around marker

	content := item.Content
	if budget < 0 {
		budget = 0
	}
	if len(content) > budget {
		cut := strings.LastIndexByte(content[:budget], '\n')
		if cut < 0 {
			cut = 0
		}
		content = content[:cut]
	}

	var b strings.Builder
	b.WriteString(begin)
	if content != "" {
		b.WriteString(content)
		b.WriteByte('\n')
	}
	b.WriteString(TruncationMarker)
	b.WriteByte('\n')
	b.WriteString(end)
	return b.String()
}
