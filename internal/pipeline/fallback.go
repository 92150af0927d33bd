package pipeline

import (
	"fmt"
	"strings"

	"github.com/kestrelworks/grimoire/internal/extract"
	"github.com/kestrelworks/grimoire/internal/scan"
)

// fallbackFileLimit bounds how many paths a fallback knowledge item lists.
const fallbackFileLimit = 25

var categoryTopics = map[string]string{
	scan.CategoryDocs:   "Documentation Files",
	scan.CategoryBuild:  "Build Files",
	scan.CategorySource: "Source Files",
	scan.CategoryConfig: "Configuration Files",
}

// fallbackFromFacts derives a degraded extraction result from scanner facts
// alone, for runs where the analyzer never produced a usable response. The
// result is always non-empty for a non-empty project.
func fallbackFromFacts(facts scan.Facts) extract.Result {
	var r extract.Result

	if len(facts.Languages) > 0 {
		r.Knowledge = append(r.Knowledge, extract.KnowledgeItem{
			Topic:   "Project Languages",
			Details: strings.Join(facts.Languages, ", "),
		})
	}
	if len(facts.TopDirs) > 0 {
		r.Knowledge = append(r.Knowledge, extract.KnowledgeItem{
			Topic:   "Project Layout",
			Details: "Top-level directories: " + strings.Join(facts.TopDirs, ", "),
		})
	}
	for _, cat := range []string{scan.CategoryDocs, scan.CategoryBuild, scan.CategorySource, scan.CategoryConfig} {
		paths := facts.ByCategory[cat]
		if len(paths) == 0 {
			continue
		}
		listed := paths
		if len(listed) > fallbackFileLimit {
			listed = listed[:fallbackFileLimit]
		}
		details := "- " + strings.Join(listed, "\n- ")
		if len(paths) > len(listed) {
			details += fmt.Sprintf("\n- (and %d more)", len(paths)-len(listed))
		}
		r.Knowledge = append(r.Knowledge, extract.KnowledgeItem{
			Topic:   categoryTopics[cat],
			Details: details,
		})
	}
	return r
}

// fallbackFromSession derives a minimal result from the raw session log when
// compaction cannot reach the analyzer.
func fallbackFromSession(sessionID, logText string) extract.Result {
	lines := strings.Count(logText, "\n")
	return extract.Result{
		Knowledge: []extract.KnowledgeItem{{
			Topic: "Session " + sessionID,
			Details: fmt.Sprintf("Unprocessed session log: %d lines, %d characters. Extraction deferred.",
				lines, len(logText)),
		}},
	}
}
