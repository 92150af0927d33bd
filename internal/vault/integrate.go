package vault

import (
	"path"
	"strings"

	"github.com/kestrelworks/grimoire/internal/classify"
)

// Counts reports how many records of each category an integration pass wrote.
type Counts struct {
	Entities  int `json:"entities"`
	Services  int `json:"services"`
	Patterns  int `json:"patterns"`
	Knowledge int `json:"knowledge"`
}

// Total sums all categories.
func (c Counts) Total() int {
	return c.Entities + c.Services + c.Patterns + c.Knowledge
}

// Integrate applies placement decisions to the vault: ensure the target
// folder, write the document, upsert the parent manifest entry, and propagate
// folder links upward so the root reaches every leaf. Placements are applied
// sequentially; a write failure aborts the pass but prior, independently-valid
// writes stay in place. The root timestamp is touched once at the end.
func (s *Store) Integrate(placements []classify.Placement) (Counts, error) {
	var counts Counts
	sharedDocs := map[string]string{} // doc path -> display name

	for _, p := range placements {
		if p.SectionName != "" {
			if err := s.AppendNamedSection(p.DocPath, p.SectionName, p.Content); err != nil {
				return counts, err
			}
			sharedDocs[p.DocPath] = TitleFromSegment(strings.TrimSuffix(path.Base(p.DocPath), ".md"))
			counts.add(p.Category)
			continue
		}

		if _, err := s.EnsureFolder(p.FolderPath); err != nil {
			return counts, err
		}
		if err := s.WriteDocument(p.DocPath, p.Content); err != nil {
			return counts, err
		}
		if err := s.UpsertManifestEntry(p.FolderPath, Entry{
			Name:        p.DisplayName,
			Link:        FileLink(path.Base(p.DocPath)),
			Description: p.Description,
			Kind:        KindFile,
		}); err != nil {
			return counts, err
		}

		// Upward propagation: every ancestor folder links the one below it,
		// including an entity's manifest linking its services/ sub-folder.
		for folder := p.FolderPath; folder != "" && folder != "."; folder = parentFolder(folder) {
			if err := s.LinkParent(folder); err != nil {
				return counts, err
			}
		}
		counts.add(p.Category)
	}

	// Root manifest links the shared section documents.
	for docPath, name := range sharedDocs {
		if err := s.UpsertManifestEntry("", Entry{
			Name:        name,
			Link:        FileLink(docPath),
			Description: name + " notes",
			Kind:        KindFile,
		}); err != nil {
			return counts, err
		}
	}

	if len(placements) > 0 {
		if err := s.TouchRootTimestamp(); err != nil {
			return counts, err
		}
	}

	return counts, nil
}

func (c *Counts) add(cat classify.Category) {
	switch cat {
	case classify.CategoryEntity:
		c.Entities++
	case classify.CategoryService, classify.CategoryEntityService:
		c.Services++
	case classify.CategoryArchitecture:
		c.Patterns++
	case classify.CategoryKnowledge:
		c.Knowledge++
	}
}

func parentFolder(folder string) string {
	parent := path.Dir(folder)
	if parent == "." || parent == "/" {
		return ""
	}
	return parent
}
