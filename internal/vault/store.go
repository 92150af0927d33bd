// Package vault owns the hierarchical markdown document tree: folder and
// document creation, per-folder manifest (INDEX.md) synchronization, and
// merge-by-key upsert semantics. All operations are upserts, safe to call
// repeatedly with identical input.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kestrelworks/grimoire/internal/errors"
)

// RootTitle is the title of the vault's root manifest.
const RootTitle = "Knowledge Vault"

// timestampPrefix marks the root manifest's "last updated" line.
const timestampPrefix = "_Last updated: "

// Store is a vault rooted at one directory. It exclusively owns all documents
// under the root; no other component mutates these files directly.
type Store struct {
	root string
}

// New creates a vault store rooted at dir. The directory is created lazily on
// first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the vault root directory.
func (s *Store) Root() string {
	return s.root
}

// abs resolves a vault-relative path, rejecting traversal outside the root.
func (s *Store) abs(rel string) (string, error) {
	clean := path.Clean("/" + rel) // forces interpretation relative to root
	if clean == "/" {
		return s.root, nil
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

// ReadDocument returns a document's content, or empty string if it does not
// exist.
func (s *Store) ReadDocument(rel string) (string, error) {
	p, err := s.abs(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// WriteDocument creates parent folders as needed and writes/overwrites the
// document. The write goes to a temp file first and is swapped in by rename,
// so a failure leaves any prior content intact.
func (s *Store) WriteDocument(rel, content string) error {
	p, err := s.abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.NewVaultWriteFailed(rel, err)
	}
	if err := atomicWrite(p, content); err != nil {
		return errors.NewVaultWriteFailed(rel, err)
	}
	return nil
}

// AppendNamedSection merges a named section into a shared document. If the
// document doesn't exist it is created with a title header and the section.
// An existing section with the same header has its entire body replaced up to
// the next section header; otherwise the section is appended at the end.
func (s *Store) AppendNamedSection(rel, sectionName, content string) error {
	text, err := s.ReadDocument(rel)
	if err != nil {
		return err
	}

	content = strings.TrimRight(content, "\n")

	if text == "" {
		title := TitleFromSegment(strings.TrimSuffix(path.Base(rel), ".md"))
		text = fmt.Sprintf("# %s\n\n## %s\n\n%s\n", title, sectionName, content)
		return s.WriteDocument(rel, text)
	}

	sections := parseSections(text)
	if hit := findSection(sections, sectionName); hit != nil {
		// Keep the blank line after the header so a same-content replace is
		// byte-identical to the original append.
		body := "\n" + content + "\n\n"
		if hit.ContentEnd == len(text) {
			body = "\n" + content + "\n"
		}
		text = text[:hit.ContentStart] + body + text[hit.ContentEnd:]
	} else {
		text = strings.TrimRight(text, "\n") + fmt.Sprintf("\n\n## %s\n\n%s\n", sectionName, content)
	}
	return s.WriteDocument(rel, text)
}

// EnsureFolder creates the folder and, if absent, its manifest with an empty
// entry table and a title derived from the folder's final path segment.
// Returns the manifest's vault-relative path.
func (s *Store) EnsureFolder(rel string) (string, error) {
	p, err := s.abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0755); err != nil {
		return "", errors.NewVaultWriteFailed(rel, err)
	}

	manifestRel := path.Join(rel, ManifestName)
	existing, err := s.ReadDocument(manifestRel)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return manifestRel, nil
	}

	title := RootTitle
	if rel != "" && rel != "." {
		title = TitleFromSegment(path.Base(rel))
	}
	if err := s.WriteDocument(manifestRel, NewManifest(title).Render()); err != nil {
		return "", err
	}
	return manifestRel, nil
}

// UpsertManifestEntry merges an entry into a folder's manifest, creating the
// folder and manifest if absent. Same-name entries are replaced in their prior
// position; new entries are appended. Content outside the managed region is
// preserved.
func (s *Store) UpsertManifestEntry(folderRel string, e Entry) error {
	manifestRel, err := s.EnsureFolder(folderRel)
	if err != nil {
		return err
	}

	text, err := s.ReadDocument(manifestRel)
	if err != nil {
		return err
	}

	m := ParseManifest(text)
	m.Upsert(e)
	return s.WriteDocument(manifestRel, m.Render())
}

// LinkParent ensures the parent folder's manifest has an entry pointing at
// this folder, so navigation from the root reaches every leaf. Callers apply
// it up the chain during integration; it is not implied by EnsureFolder.
func (s *Store) LinkParent(folderRel string) error {
	folderRel = path.Clean(folderRel)
	if folderRel == "." || folderRel == "/" || folderRel == "" {
		return nil
	}

	parent := path.Dir(folderRel)
	if parent == "." || parent == "/" {
		parent = ""
	}
	base := path.Base(folderRel)

	return s.UpsertManifestEntry(parent, Entry{
		Name:        base,
		Link:        FolderLink(base),
		Description: TitleFromSegment(base),
		Kind:        KindFolder,
	})
}

// TouchRootTimestamp rewrites the "last updated" marker in the root manifest.
// Called once after a full integration pass.
func (s *Store) TouchRootTimestamp() error {
	manifestRel, err := s.EnsureFolder("")
	if err != nil {
		return err
	}
	text, err := s.ReadDocument(manifestRel)
	if err != nil {
		return err
	}

	stamp := timestampPrefix + time.Now().UTC().Format(time.RFC3339) + "_"

	lines := strings.Split(text, "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, timestampPrefix) {
			lines[i] = stamp
			replaced = true
			break
		}
	}
	if replaced {
		return s.WriteDocument(manifestRel, strings.Join(lines, "\n"))
	}

	// Insert after the title line
	m := ParseManifest(text)
	if idx := strings.Index(m.Prefix, "\n"); idx >= 0 {
		m.Prefix = m.Prefix[:idx+1] + "\n" + stamp + "\n" + strings.TrimLeft(m.Prefix[idx+1:], "\n")
		if !strings.HasSuffix(m.Prefix, "\n\n") {
			m.Prefix = strings.TrimRight(m.Prefix, "\n") + "\n\n"
		}
	} else {
		m.Prefix = stamp + "\n\n" + m.Prefix
	}
	return s.WriteDocument(manifestRel, m.Render())
}

// Tree lists all markdown documents in the vault as sorted vault-relative
// paths. An absent vault yields an empty list.
func (s *Store) Tree() ([]string, error) {
	var docs []string
	err := filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == s.root && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		docs = append(docs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	sort.Strings(docs)
	return docs, nil
}

// atomicWrite writes content to a temp file next to path and renames it into
// place.
func atomicWrite(p, content string) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return err
	}
	tempPath := p + "." + hex.EncodeToString(randBytes) + ".tmp"

	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, p); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
