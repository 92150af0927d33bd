package vault

import (
	"regexp"
	"strings"
)

// section represents a parsed markdown section boundary inside a document.
type section struct {
	HeaderName   string // "Repository Pattern" from "## Repository Pattern"
	HeaderStart  int    // byte offset of header start
	ContentStart int    // byte offset where the section body starts
	ContentEnd   int    // byte offset where the body ends (next header or EOF)
}

// headerPattern matches markdown headers (h1-h6) at the start of a line.
// Trailing spaces/tabs on the header line are trimmed by the [^\n]+ group.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+([^\n]+?)[ \t]*$`)

// fencePattern matches fenced code block delimiters (``` or ~~~) at the
// start of a line, 0-3 spaces of indentation per CommonMark.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

// fencedRanges returns byte ranges [start, end) of fenced code blocks so
// headers inside code samples are not mistaken for section boundaries.
// A closing fence must use the same character and be at least as long.
func fencedRanges(text string) [][2]int {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}

	var ranges [][2]int
	var openChar byte
	var openLen int
	var openStart int
	inFence := false

	for _, match := range matches {
		fenceChars := text[match[2]:match[3]]
		char := fenceChars[0]
		fenceLen := len(fenceChars)

		if !inFence {
			openChar = char
			openLen = fenceLen
			openStart = match[0]
			inFence = true
		} else if char == openChar && fenceLen >= openLen {
			ranges = append(ranges, [2]int{openStart, match[1]})
			inFence = false
		}
	}
	return ranges
}

func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// parseSections finds all markdown section headers and their body boundaries.
// Returns nil if the document has no headers.
func parseSections(text string) []section {
	allMatches := headerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(allMatches) == 0 {
		return nil
	}

	fences := fencedRanges(text)
	matches := allMatches
	if len(fences) > 0 {
		matches = make([][]int, 0, len(allMatches))
		for _, m := range allMatches {
			if !insideFence(m[0], fences) {
				matches = append(matches, m)
			}
		}
		if len(matches) == 0 {
			return nil
		}
	}

	sections := make([]section, len(matches))
	for i, match := range matches {
		// match indices: [fullStart, fullEnd, hashStart, hashEnd, nameStart, nameEnd]
		headerEnd := match[1]
		contentStart := headerEnd
		if contentStart < len(text) && text[contentStart] == '\n' {
			contentStart++
		}

		var contentEnd int
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		} else {
			contentEnd = len(text)
		}

		sections[i] = section{
			HeaderName:   text[match[4]:match[5]],
			HeaderStart:  match[0],
			ContentStart: contentStart,
			ContentEnd:   contentEnd,
		}
	}

	return sections
}

// findSection returns the section whose header name matches exactly
// (case-insensitive), or nil.
func findSection(sections []section, name string) *section {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	for i := range sections {
		if strings.ToLower(strings.TrimSpace(sections[i].HeaderName)) == nameLower {
			return &sections[i]
		}
	}
	return nil
}
