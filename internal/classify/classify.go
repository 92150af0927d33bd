// Package classify maps unified extraction results to vault placement
// decisions: which folder, which document, and the rendered markdown body for
// each record.
package classify

import (
	"fmt"
	"strings"

	"github.com/kestrelworks/grimoire/internal/extract"
)

// Category tags a placement with the record variant that produced it.
type Category string

const (
	CategoryEntity        Category = "entity"
	CategoryEntityService Category = "entity-service"
	CategoryService       Category = "service"
	CategoryArchitecture  Category = "architecture"
	CategoryKnowledge     Category = "knowledge"
)

// Shared documents accumulating named sections at the vault root.
const (
	ArchitectureDoc = "architecture.md"
	KnowledgeDoc    = "general-knowledge.md"
)

// fallbackServiceName is used when stripping the entity name from a service
// name leaves nothing.
const fallbackServiceName = "core"

// Placement describes where and what to write into the vault for one record.
type Placement struct {
	Category    Category
	DisplayName string
	FolderPath  string // vault-relative folder to ensure; empty for shared-doc sections
	DocPath     string // vault-relative document path
	SectionName string // set for shared-doc section placements
	Description string // one-line description for the parent manifest
	Content     string // rendered markdown body
}

// Classify maps each record of a unified result to a placement decision.
// Entities come first so services can be associated with already-seen entities.
func Classify(result extract.Result) []Placement {
	placements := make([]Placement, 0,
		len(result.Entities)+len(result.Services)+len(result.Architecture)+len(result.Knowledge))

	for _, e := range result.Entities {
		slug := Slug(e.Name)
		placements = append(placements, Placement{
			Category:    CategoryEntity,
			DisplayName: e.Name,
			FolderPath:  "entities/" + slug,
			DocPath:     "entities/" + slug + "/overview.md",
			Description: entityDescription(e),
			Content:     renderEntity(e),
		})
	}

	for _, s := range result.Services {
		if owner, ok := matchEntity(s, result.Entities); ok {
			suffix := stripEntityName(s.Name, owner.Name)
			if suffix == "" {
				suffix = fallbackServiceName
			}
			ownerSlug := Slug(owner.Name)
			placements = append(placements, Placement{
				Category:    CategoryEntityService,
				DisplayName: s.Name,
				FolderPath:  "entities/" + ownerSlug + "/services",
				DocPath:     "entities/" + ownerSlug + "/services/" + Slug(suffix) + ".md",
				Description: serviceDescription(s),
				Content:     renderService(s),
			})
			continue
		}

		placements = append(placements, Placement{
			Category:    CategoryService,
			DisplayName: s.Name,
			FolderPath:  "services",
			DocPath:     "services/" + Slug(s.Name) + ".md",
			Description: serviceDescription(s),
			Content:     renderService(s),
		})
	}

	for _, a := range result.Architecture {
		placements = append(placements, Placement{
			Category:    CategoryArchitecture,
			DisplayName: a.Pattern,
			DocPath:     ArchitectureDoc,
			SectionName: a.Pattern,
			Description: firstLine(a.Description),
			Content:     renderArchitecture(a),
		})
	}

	for _, k := range result.Knowledge {
		placements = append(placements, Placement{
			Category:    CategoryKnowledge,
			DisplayName: k.Topic,
			DocPath:     KnowledgeDoc,
			SectionName: k.Topic,
			Description: firstLine(k.Details),
			Content:     strings.TrimSpace(k.Details),
		})
	}

	return placements
}

// Slug lowercases a display name and sanitizes it into a safe path segment:
// path separators and reserved characters become dashes, runs collapse.
// The display name is carried separately, so slugging is lossy on purpose.
func Slug(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range lower {
		safe := r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if safe {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-.")
	if slug == "" {
		return "unnamed"
	}
	return slug
}

// matchEntity finds an entity whose name fuzzily matches the service: a
// case-insensitive substring match in either direction against the service's
// name or location. First matching entity wins.
func matchEntity(s extract.ServiceItem, entities []extract.Entity) (extract.Entity, bool) {
	svcName := strings.ToLower(s.Name)
	svcLoc := strings.ToLower(s.Location)

	for _, e := range entities {
		entName := strings.ToLower(strings.TrimSpace(e.Name))
		if entName == "" {
			continue
		}
		if strings.Contains(svcName, entName) || strings.Contains(entName, svcName) {
			return e, true
		}
		if svcLoc != "" && strings.Contains(svcLoc, entName) {
			return e, true
		}
	}
	return extract.Entity{}, false
}

// stripEntityName removes the entity's name from the service name
// (case-insensitively) and trims leftover separators.
func stripEntityName(serviceName, entityName string) string {
	idx := strings.Index(strings.ToLower(serviceName), strings.ToLower(entityName))
	if idx < 0 {
		return strings.TrimSpace(serviceName)
	}
	remainder := serviceName[:idx] + serviceName[idx+len(entityName):]
	return strings.Trim(remainder, " \t-_./")
}

func renderEntity(e extract.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", e.Name)
	if e.Location != "" {
		fmt.Fprintf(&b, "\nSource: `%s`\n", e.Location)
	}
	if len(e.Attributes) > 0 {
		b.WriteString("\n## Attributes\n\n")
		for _, a := range e.Attributes {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(e.Relations) > 0 {
		b.WriteString("\n## Relations\n\n")
		for _, r := range e.Relations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

func renderService(s extract.ServiceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Name)
	if s.Location != "" {
		fmt.Fprintf(&b, "\nSource: `%s`\n", s.Location)
	}
	if s.Purpose != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(s.Purpose))
	}
	if len(s.Methods) > 0 {
		b.WriteString("\n## Methods\n\n")
		for _, m := range s.Methods {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return b.String()
}

func renderArchitecture(a extract.ArchitectureItem) string {
	var b strings.Builder
	if a.Description != "" {
		b.WriteString(strings.TrimSpace(a.Description))
		b.WriteByte('\n')
	}
	if len(a.Locations) > 0 {
		b.WriteString("\nSeen in:\n\n")
		for _, l := range a.Locations {
			fmt.Fprintf(&b, "- `%s`\n", l)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func entityDescription(e extract.Entity) string {
	switch {
	case len(e.Attributes) > 0 && len(e.Relations) > 0:
		return fmt.Sprintf("Entity with %d attributes, %d relations", len(e.Attributes), len(e.Relations))
	case len(e.Attributes) > 0:
		return fmt.Sprintf("Entity with %d attributes", len(e.Attributes))
	case e.Location != "":
		return "Entity from " + e.Location
	default:
		return "Entity"
	}
}

func serviceDescription(s extract.ServiceItem) string {
	if d := firstLine(s.Purpose); d != "" {
		return d
	}
	if s.Location != "" {
		return "Service from " + s.Location
	}
	return "Service"
}

// firstLine returns the first line of text, trimmed, for one-line manifest
// descriptions. Pipes would break the manifest table row.
func firstLine(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	return strings.ReplaceAll(line, "|", "/")
}
