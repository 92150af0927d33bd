// Package scan enumerates candidate source artifacts under a project root for
// discovery runs. Files are categorized by extension, ordered by category
// priority then size, and capped to keep analyzer cost bounded.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kestrelworks/grimoire/internal/batch"
)

// maxItemBytes skips pathological single files; anything larger is unlikely
// to be hand-written source worth analyzing.
const maxItemBytes = 512 * 1024

// Categories in priority order: documentation and build manifests carry the
// densest signal per byte, then source, then config.
const (
	CategoryDocs   = "docs"
	CategoryBuild  = "build"
	CategorySource = "source"
	CategoryConfig = "config"
)

var categoryRank = map[string]int{
	CategoryDocs:   0,
	CategoryBuild:  1,
	CategorySource: 2,
	CategoryConfig: 3,
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".grimoire":    true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

var buildFiles = map[string]bool{
	"go.mod":             true,
	"package.json":       true,
	"cargo.toml":         true,
	"pyproject.toml":     true,
	"setup.py":           true,
	"pom.xml":            true,
	"build.gradle":       true,
	"gemfile":            true,
	"makefile":           true,
	"dockerfile":         true,
	"docker-compose.yml": true,
}

var sourceExts = map[string]string{
	".go":    "Go",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".py":    "Python",
	".rb":    "Ruby",
	".rs":    "Rust",
	".java":  "Java",
	".kt":    "Kotlin",
	".swift": "Swift",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cs":    "C#",
	".php":   "PHP",
	".sh":    "Shell",
	".sql":   "SQL",
}

var configExts = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".env":  true,
}

var docExts = map[string]bool{
	".md":  true,
	".rst": true,
	".txt": true,
}

// File is one scanned candidate before its content is loaded.
type File struct {
	Path     string // relative to the scanned root, slash-separated
	Size     int64
	Category string
}

// Facts summarizes a scanned tree for fallback extraction when the analyzer
// is unreachable.
type Facts struct {
	Languages  []string // sorted by file count, descending
	TopDirs    []string // top-level directories, sorted
	FileCount  int
	ByCategory map[string][]string // category -> relative paths, in priority order
}

// Scan walks root and returns up to maxFiles candidates in priority order,
// plus the tree facts. The walk never fails on unreadable subtrees; those are
// skipped.
func Scan(root string, maxFiles int) ([]File, Facts, error) {
	facts := Facts{ByCategory: map[string][]string{}}
	langCounts := map[string]int{}
	topDirs := map[string]bool{}

	var files []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !strings.Contains(rel, "/") {
				topDirs[rel] = true
			}
			return nil
		}

		cat := categorize(d.Name())
		if cat == "" {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxItemBytes || info.Size() == 0 {
			return nil
		}

		files = append(files, File{Path: rel, Size: info.Size(), Category: cat})
		if lang, ok := sourceExts[strings.ToLower(filepath.Ext(d.Name()))]; ok && cat == CategorySource {
			langCounts[lang]++
		}
		return nil
	})
	if err != nil {
		return nil, facts, err
	}

	// Priority order: category rank, then smaller files first within a
	// category so more distinct files fit into early batches.
	sort.SliceStable(files, func(i, j int) bool {
		ri, rj := categoryRank[files[i].Category], categoryRank[files[j].Category]
		if ri != rj {
			return ri < rj
		}
		return files[i].Size < files[j].Size
	})

	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}

	facts.FileCount = len(files)
	for _, f := range files {
		facts.ByCategory[f.Category] = append(facts.ByCategory[f.Category], f.Path)
	}
	facts.Languages = rankedLanguages(langCounts)
	facts.TopDirs = sortedKeys(topDirs)
	return files, facts, nil
}

// Load reads the scanned files into batcher items, preserving order. Files
// that vanished since the walk are skipped.
func Load(root string, files []File) []batch.Item {
	items := make([]batch.Item, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			continue
		}
		items = append(items, batch.Item{
			Path:     f.Path,
			Category: f.Category,
			Content:  string(data),
			Size:     len(data),
		})
	}
	return items
}

func categorize(name string) string {
	lower := strings.ToLower(name)
	if buildFiles[lower] {
		return CategoryBuild
	}
	ext := filepath.Ext(lower)
	switch {
	case docExts[ext]:
		return CategoryDocs
	case sourceExts[ext] != "":
		return CategorySource
	case configExts[ext]:
		return CategoryConfig
	}
	return ""
}

func rankedLanguages(counts map[string]int) []string {
	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
