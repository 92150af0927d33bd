package vault

import (
	"fmt"
	"regexp"
	"strings"
)

// ManifestName is the reserved file name of every folder's manifest document.
const ManifestName = "INDEX.md"

// contentsHeader is the reserved section header introducing the managed entry
// table. Everything outside the managed region is preserved verbatim.
const contentsHeader = "## Contents"

// EntryKind distinguishes manifest rows pointing at documents from rows
// pointing at sub-folders.
type EntryKind string

const (
	KindFile   EntryKind = "file"
	KindFolder EntryKind = "folder"
)

// Entry is one row in a folder's manifest: display name, relative link,
// one-line description. Names are unique within one manifest.
type Entry struct {
	Name        string
	Link        string
	Description string
	Kind        EntryKind
}

// Manifest is a parsed manifest document: the managed entry table plus the
// surrounding text, kept byte-for-byte so re-rendering an unchanged manifest
// reproduces the original.
type Manifest struct {
	Prefix  string // text before the managed region
	Entries []Entry
	Suffix  string // text after the managed region
}

// entryRowPattern matches one rendered entry row: | [name](link) | description |
var entryRowPattern = regexp.MustCompile(`^\|\s*\[(.*?)\]\((.*?)\)\s*\|\s*(.*?)\s*\|\s*$`)

// tableChrome are the fixed header rows of the entry table.
const (
	tableHeaderRow    = "| Name | Description |"
	tableSeparatorRow = "| --- | --- |"
)

// NewManifest creates an empty manifest with a title header.
func NewManifest(title string) *Manifest {
	return &Manifest{Prefix: "# " + title + "\n\n"}
}

// ParseManifest splits a manifest document into prefix, entry table, and
// suffix. A document without a managed region parses to prefix-only, and
// upserting into it will append the region at the end.
func ParseManifest(text string) *Manifest {
	lines := strings.SplitAfter(text, "\n")

	// Locate the reserved section header.
	headerIdx := -1
	offset := 0
	headerOffset := 0
	for i, line := range lines {
		if strings.TrimRight(line, "\n") == contentsHeader {
			headerIdx = i
			headerOffset = offset
			break
		}
		offset += len(line)
	}
	if headerIdx == -1 {
		return &Manifest{Prefix: text}
	}

	// The managed region runs from the header through the contiguous table
	// block (chrome rows and entry rows), allowing blank lines before the
	// table. It ends at the first line that is neither.
	m := &Manifest{Prefix: text[:headerOffset]}
	end := headerOffset + len(lines[headerIdx])
	seenTable := false
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimRight(line, "\n")
		switch {
		case trimmed == "" && !seenTable:
			// blank line between header and table
		case trimmed == tableHeaderRow || trimmed == tableSeparatorRow:
			seenTable = true
		case entryRowPattern.MatchString(trimmed):
			seenTable = true
			sub := entryRowPattern.FindStringSubmatch(trimmed)
			m.Entries = append(m.Entries, Entry{
				Name:        sub[1],
				Link:        sub[2],
				Description: sub[3],
				Kind:        kindFromLink(sub[2]),
			})
		default:
			m.Suffix = text[end:]
			return m
		}
		end += len(line)
	}
	m.Suffix = text[end:]
	return m
}

// Render reproduces the manifest document. Rendering is canonical: parsing a
// rendered manifest and rendering it again yields byte-identical output, so
// no-op integration passes create no spurious diffs.
func (m *Manifest) Render() string {
	var b strings.Builder
	b.WriteString(m.Prefix)

	if !strings.HasSuffix(m.Prefix, "\n\n") && m.Prefix != "" {
		if strings.HasSuffix(m.Prefix, "\n") {
			b.WriteByte('\n')
		} else {
			b.WriteString("\n\n")
		}
	}

	b.WriteString(contentsHeader)
	b.WriteString("\n\n")
	b.WriteString(tableHeaderRow)
	b.WriteByte('\n')
	b.WriteString(tableSeparatorRow)
	b.WriteByte('\n')
	for _, e := range m.Entries {
		fmt.Fprintf(&b, "| [%s](%s) | %s |\n", e.Name, e.Link, e.Description)
	}

	if m.Suffix != "" {
		if !strings.HasPrefix(m.Suffix, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(m.Suffix)
	}
	return b.String()
}

// Upsert merges an entry into the set keyed by display name
// (case-insensitive): a same-name entry is replaced in place, preserving the
// prior order; a genuinely new entry is appended.
func (m *Manifest) Upsert(e Entry) {
	for i := range m.Entries {
		if strings.EqualFold(m.Entries[i].Name, e.Name) {
			m.Entries[i] = e
			return
		}
	}
	m.Entries = append(m.Entries, e)
}

// kindFromLink infers the entry kind from the link shape: folder links point
// at the sub-folder's manifest.
func kindFromLink(link string) EntryKind {
	if strings.HasSuffix(link, "/"+ManifestName) {
		return KindFolder
	}
	return KindFile
}

// FolderLink builds the relative link for a sub-folder entry.
func FolderLink(folderName string) string {
	return "./" + folderName + "/" + ManifestName
}

// FileLink builds the relative link for a document entry.
func FileLink(fileName string) string {
	return "./" + fileName
}

// TitleFromSegment derives a human-readable title from a path segment:
// dashes and underscores become spaces and each word is capitalized.
func TitleFromSegment(segment string) string {
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return segment
	}
	return strings.Join(words, " ")
}
