package web

import (
	"net/http"
	"strings"

	"github.com/kestrelworks/grimoire/internal/errors"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// Handlers contains HTTP route handlers for the vault browser.
type Handlers struct {
	vault    *vault.Store
	renderer *Renderer
}

// HandleTree handles GET /vault — the full document listing.
func (h *Handlers) HandleTree(w http.ResponseWriter, r *http.Request) {
	docs, err := h.vault.Tree()
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}

	h.renderer.renderPage(w, "tree", TreePageData{
		PageData: PageData{
			Title:   "Knowledge Vault",
			Version: h.renderer.version,
		},
		Documents: treeItems(docs),
		Count:     len(docs),
	})
}

// HandleDoc handles GET /vault/{path...} — one rendered document.
func (h *Handlers) HandleDoc(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" || !strings.HasSuffix(path, ".md") {
		h.renderer.renderError(w, errors.NewInvalidRequest("expected a vault-relative markdown path"))
		return
	}

	content, err := h.vault.ReadDocument(path)
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}
	if content == "" {
		h.renderer.renderPageStatus(w, http.StatusNotFound, "error", ErrorPageData{
			PageData:   PageData{Title: "Not Found", Version: h.renderer.version},
			StatusCode: http.StatusNotFound,
			Message:    "no such document: " + path,
		})
		return
	}

	h.renderer.renderPage(w, "doc", DocPageData{
		PageData: PageData{
			Title:   path,
			Version: h.renderer.version,
		},
		Path:         path,
		RenderedHTML: h.renderer.renderMarkdown(content),
	})
}

// HandleRaw handles GET /raw/{path...} — the document source as plain text.
func (h *Handlers) HandleRaw(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	content, err := h.vault.ReadDocument(path)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if content == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}
