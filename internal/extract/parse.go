package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Section names recognized in analyzer responses.
const (
	sectionEntities     = "entities"
	sectionArchitecture = "architecture"
	sectionServices     = "services"
	sectionKnowledge    = "knowledge"
)

// sectionPattern matches a section heading in analyzer output: an optional
// markdown header or bold marker around one of the four recognized names.
// Analyzer verbosity outside recognized sections is ignored.
var sectionPattern = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*|\*\*)?\s*(entities|architecture|services|knowledge)\s*(?:\*\*)?\s*:?\s*$`)

// fieldPattern matches a "Label: value" field line, with optional markdown
// list or bold decoration the analyzer tends to add.
var fieldPattern = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(?:\*\*)?([a-z][a-z /]*?)(?:\*\*)?\s*:\s*(.*)$`)

// primaryField names the field that starts a new block in each section.
var primaryField = map[string]string{
	sectionEntities:     "name",
	sectionArchitecture: "pattern",
	sectionServices:     "name",
	sectionKnowledge:    "topic",
}

// block is one field-labeled record in a section before typing.
type block struct {
	fields map[string]string
	order  []string
	last   string // last field seen, for continuation lines
}

// Parse turns one analyzer response into a typed Result. The parser is
// tolerant by contract: absent sections yield empty categories, blocks missing
// their primary identifying field are discarded with a diagnostic, and
// anything outside recognized sections is ignored.
func Parse(text string) Result {
	var result Result

	section := ""
	var current *block
	var blocks []struct {
		section string
		b       *block
	}

	flush := func() {
		if current != nil {
			blocks = append(blocks, struct {
				section string
				b       *block
			}{section, current})
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			flush()
			section = strings.ToLower(m[1])
			continue
		}
		if section == "" {
			continue
		}

		if m := fieldPattern.FindStringSubmatch(line); m != nil {
			label := strings.ToLower(strings.TrimSpace(m[1]))
			value := strings.TrimSpace(m[2])

			if label == primaryField[section] {
				flush()
				current = &block{fields: map[string]string{}}
			}
			// A field before any primary field still opens a block, so the
			// headless record is flushed and diagnosed instead of vanishing.
			if current == nil {
				current = &block{fields: map[string]string{}}
			}
			if prev, ok := current.fields[label]; ok && prev != "" {
				current.fields[label] = prev + "; " + value
			} else {
				current.fields[label] = value
				current.order = append(current.order, label)
			}
			current.last = label
			continue
		}

		// Continuation line: extend the last field of the open block.
		// A blank line ends continuation so detached prose is not folded in.
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if current != nil {
				current.last = ""
			}
			continue
		}
		if current != nil && current.last != "" {
			current.fields[current.last] = strings.TrimSpace(current.fields[current.last] + " " + trimmed)
		}
	}
	flush()

	for _, entry := range blocks {
		switch entry.section {
		case sectionEntities:
			name := entry.b.fields["name"]
			if name == "" {
				result.Unparsed = append(result.Unparsed, diagnose(entry.section, entry.b))
				continue
			}
			result.Entities = append(result.Entities, Entity{
				Name:       name,
				Location:   firstOf(entry.b.fields, "location", "source", "file"),
				Attributes: splitList(entry.b.fields["attributes"]),
				Relations:  splitList(entry.b.fields["relations"]),
			})
		case sectionArchitecture:
			pattern := entry.b.fields["pattern"]
			if pattern == "" {
				result.Unparsed = append(result.Unparsed, diagnose(entry.section, entry.b))
				continue
			}
			result.Architecture = append(result.Architecture, ArchitectureItem{
				Pattern:     pattern,
				Description: entry.b.fields["description"],
				Locations:   splitList(firstOf(entry.b.fields, "locations", "files", "affected")),
			})
		case sectionServices:
			name := entry.b.fields["name"]
			if name == "" {
				result.Unparsed = append(result.Unparsed, diagnose(entry.section, entry.b))
				continue
			}
			result.Services = append(result.Services, ServiceItem{
				Name:     name,
				Location: firstOf(entry.b.fields, "location", "source", "file"),
				Purpose:  entry.b.fields["purpose"],
				Methods:  splitList(entry.b.fields["methods"]),
			})
		case sectionKnowledge:
			topic := entry.b.fields["topic"]
			if topic == "" {
				result.Unparsed = append(result.Unparsed, diagnose(entry.section, entry.b))
				continue
			}
			result.Knowledge = append(result.Knowledge, KnowledgeItem{
				Topic:   topic,
				Details: entry.b.fields["details"],
			})
		}
	}

	return dedupe(result)
}

// dedupe enforces the Result invariant: first occurrence wins per
// case-insensitive key within each category.
func dedupe(r Result) Result {
	out := Result{Unparsed: r.Unparsed}

	seenE := map[string]bool{}
	for _, e := range r.Entities {
		if k := e.Key(); k != "" && !seenE[k] {
			seenE[k] = true
			out.Entities = append(out.Entities, e)
		}
	}
	seenA := map[string]bool{}
	for _, a := range r.Architecture {
		if k := a.Key(); k != "" && !seenA[k] {
			seenA[k] = true
			out.Architecture = append(out.Architecture, a)
		}
	}
	seenS := map[string]bool{}
	for _, s := range r.Services {
		if k := s.Key(); k != "" && !seenS[k] {
			seenS[k] = true
			out.Services = append(out.Services, s)
		}
	}
	seenK := map[string]bool{}
	for _, k := range r.Knowledge {
		if key := k.Key(); key != "" && !seenK[key] {
			seenK[key] = true
			out.Knowledge = append(out.Knowledge, k)
		}
	}
	return out
}

// splitList splits a comma-separated field value and trims each element.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstOf(fields map[string]string, labels ...string) string {
	for _, l := range labels {
		if v := fields[l]; v != "" {
			return v
		}
	}
	return ""
}

func diagnose(section string, b *block) string {
	return fmt.Sprintf("%s block missing %s field (saw: %s)", section, primaryField[section], strings.Join(b.order, ", "))
}
