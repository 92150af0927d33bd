// Package extract turns semi-structured analyzer responses into typed records
// and merges per-batch results into one unified extraction result.
package extract

import "strings"

// Entity is a named domain object discovered in the analyzed input.
type Entity struct {
	Name       string   `json:"name"`
	Location   string   `json:"location,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Relations  []string `json:"relations,omitempty"`
}

// ArchitectureItem is a recurring structural pattern.
type ArchitectureItem struct {
	Pattern     string   `json:"pattern"`
	Description string   `json:"description,omitempty"`
	Locations   []string `json:"locations,omitempty"`
}

// ServiceItem is a unit of behavior (repository, handler, worker...).
type ServiceItem struct {
	Name     string   `json:"name"`
	Location string   `json:"location,omitempty"`
	Purpose  string   `json:"purpose,omitempty"`
	Methods  []string `json:"methods,omitempty"`
}

// KnowledgeItem is a free-form fact worth keeping.
type KnowledgeItem struct {
	Topic   string `json:"topic"`
	Details string `json:"details,omitempty"`
}

// Result is one unified extraction result. Within one Result no two records
// of the same variant share a case-insensitive key.
type Result struct {
	Entities     []Entity           `json:"entities,omitempty"`
	Architecture []ArchitectureItem `json:"architecture,omitempty"`
	Services     []ServiceItem      `json:"services,omitempty"`
	Knowledge    []KnowledgeItem    `json:"knowledge,omitempty"`

	// Unparsed collects diagnostics for blocks discarded during parsing.
	// Informational only; parsing never hard-fails.
	Unparsed []string `json:"unparsed,omitempty"`
}

// IsEmpty reports whether the result carries no records at all.
func (r Result) IsEmpty() bool {
	return len(r.Entities) == 0 && len(r.Architecture) == 0 &&
		len(r.Services) == 0 && len(r.Knowledge) == 0
}

// Counts returns per-category record counts in a fixed order:
// entities, architecture, services, knowledge.
func (r Result) Counts() (int, int, int, int) {
	return len(r.Entities), len(r.Architecture), len(r.Services), len(r.Knowledge)
}

// Key returns the dedup key for an entity.
func (e Entity) Key() string { return dedupKey(e.Name) }

// Key returns the dedup key for an architecture item.
func (a ArchitectureItem) Key() string { return dedupKey(a.Pattern) }

// Key returns the dedup key for a service item.
func (s ServiceItem) Key() string { return dedupKey(s.Name) }

// Key returns the dedup key for a knowledge item.
func (k KnowledgeItem) Key() string { return dedupKey(k.Topic) }

func dedupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
