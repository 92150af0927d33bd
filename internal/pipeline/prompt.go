package pipeline

import (
	"strings"

	"github.com/kestrelworks/grimoire/internal/batch"
)

// promptHeader instructs the analyzer to answer in the four-section prose
// format the extraction parser understands. Kept deliberately loose: the
// parser tolerates headings, bold labels, and bullet decoration.
const promptHeader = `Analyze the following material and report structured findings.

Respond with these four sections, using the exact section names:

Entities:
- Name: <entity name>
  Location: <source path, if known>
  Attributes: <comma-separated attribute descriptions>
  Relations: <comma-separated relation descriptions>

Architecture:
- Pattern: <pattern name>
  Description: <one or two sentences>
  Locations: <comma-separated source paths>

Services:
- Name: <service name>
  Location: <source path, if known>
  Purpose: <one or two sentences>
  Methods: <comma-separated method descriptions>

Knowledge:
- Topic: <topic name>
  Details: <free text>

Report only findings grounded in the material. Leave a section empty if
nothing fits it. Do not add commentary outside the sections.

Material:

`

// buildPrompt wraps one prepared batch in the extraction instructions.
func buildPrompt(b batch.Batch) string {
	var sb strings.Builder
	sb.Grow(len(promptHeader) + len(b.Content))
	sb.WriteString(promptHeader)
	sb.WriteString(b.Content)
	return sb.String()
}
