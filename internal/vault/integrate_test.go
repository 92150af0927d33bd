package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/grimoire/internal/classify"
	"github.com/kestrelworks/grimoire/internal/extract"
)

func TestIntegrate_FullResult(t *testing.T) {
	s := New(t.TempDir())

	result := extract.Result{
		Entities: []extract.Entity{{
			Name:       "Order",
			Location:   "src/order/order.ts",
			Attributes: []string{"id", "total"},
		}},
		Services: []extract.ServiceItem{
			{Name: "OrderRepository", Location: "src/order/repo.ts", Purpose: "Persists orders."},
			{Name: "Scheduler", Purpose: "Runs cron jobs."},
		},
		Architecture: []extract.ArchitectureItem{{
			Pattern:     "Repository Pattern",
			Description: "Data access behind repositories.",
		}},
		Knowledge: []extract.KnowledgeItem{{Topic: "Testing Convention", Details: "Table tests."}},
	}

	counts, err := s.Integrate(classify.Classify(result))
	require.NoError(t, err)
	require.Equal(t, Counts{Entities: 1, Services: 2, Patterns: 1, Knowledge: 1}, counts)
	require.Equal(t, 5, counts.Total())

	// Entity document and manifests
	overview, err := s.ReadDocument("entities/order/overview.md")
	require.NoError(t, err)
	require.Contains(t, overview, "# Order")

	orderManifest, err := s.ReadDocument("entities/order/INDEX.md")
	require.NoError(t, err)
	require.Contains(t, orderManifest, "[Order](./overview.md)")

	// Sub-service document under the entity, linked from the entity manifest
	svcDoc, err := s.ReadDocument("entities/order/services/repository.md")
	require.NoError(t, err)
	require.Contains(t, svcDoc, "# OrderRepository")
	require.Contains(t, orderManifest, "[services](./services/INDEX.md)")

	// Standalone service
	schedDoc, err := s.ReadDocument("services/scheduler.md")
	require.NoError(t, err)
	require.Contains(t, schedDoc, "Runs cron jobs.")

	// Shared documents with named sections
	arch, err := s.ReadDocument("architecture.md")
	require.NoError(t, err)
	require.Contains(t, arch, "## Repository Pattern")

	know, err := s.ReadDocument("general-knowledge.md")
	require.NoError(t, err)
	require.Contains(t, know, "## Testing Convention")

	// Root manifest reaches everything
	root, err := s.ReadDocument("INDEX.md")
	require.NoError(t, err)
	require.Contains(t, root, "[entities](./entities/INDEX.md)")
	require.Contains(t, root, "[services](./services/INDEX.md)")
	require.Contains(t, root, "[Architecture](./architecture.md)")
	require.Contains(t, root, "[General Knowledge](./general-knowledge.md)")
	require.Contains(t, root, timestampPrefix)
}

func TestIntegrate_IdempotentUpsert(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	placements := classify.Classify(extract.Result{
		Entities:  []extract.Entity{{Name: "Order", Attributes: []string{"id"}}},
		Knowledge: []extract.KnowledgeItem{{Topic: "Build System", Details: "Make."}},
	})

	_, err := s.Integrate(placements)
	require.NoError(t, err)
	first := snapshotTree(t, dir)

	_, err = s.Integrate(placements)
	require.NoError(t, err)
	second := snapshotTree(t, dir)

	require.Equal(t, len(first), len(second), "file set changed on repeat")
	for path, content := range first {
		if path == "INDEX.md" {
			// Only the timestamp line may differ on the root manifest
			require.Equal(t, stripTimestamp(content), stripTimestamp(second[path]), path)
			continue
		}
		require.Equal(t, content, second[path], path)
	}
}

func TestIntegrate_EmptyPlacements(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	counts, err := s.Integrate(nil)
	require.NoError(t, err)
	require.Zero(t, counts.Total())

	// No vault files spring into existence for an empty pass
	_, err = os.Stat(filepath.Join(dir, ManifestName))
	require.True(t, os.IsNotExist(err))
}

func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func stripTimestamp(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, timestampPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
