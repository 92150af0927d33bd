package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kestrelworks/grimoire/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// TreePageData is the template data for the vault tree page.
type TreePageData struct {
	PageData
	Documents []TreeItem
	Count     int
}

// TreeItem is one document row on the tree page.
type TreeItem struct {
	Path   string
	Name   string
	Depth  int
	Indent template.CSS
}

// DocPageData is the template data for a rendered vault document.
type DocPageData struct {
	PageData
	Path         string
	RenderedHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	markdown  goldmark.Markdown
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	layoutTmpl := template.Must(template.New("layout").ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"tree":  "tree.html",
		"doc":   "doc.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders a full error page from any error.
func (r *Renderer) renderError(w http.ResponseWriter, err error) {
	gErr, ok := err.(*errors.GrimoireError)
	if !ok {
		gErr = errors.NewInternal(err)
	}

	r.renderPageStatus(w, gErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", gErr.Status),
			Version: r.version,
		},
		StatusCode: gErr.Status,
		Message:    gErr.Message,
	})
}

// renderMarkdown converts vault markdown to HTML. Relative links between
// documents are left as-is; they resolve under /vault/{path} because pages
// are served at the document's vault-relative path.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// treeItems maps sorted vault-relative paths to display rows.
func treeItems(paths []string) []TreeItem {
	items := make([]TreeItem, 0, len(paths))
	for _, p := range paths {
		depth := strings.Count(p, "/")
		items = append(items, TreeItem{
			Path:   p,
			Name:   p[strings.LastIndexByte(p, '/')+1:],
			Depth:  depth,
			Indent: template.CSS(fmt.Sprintf("padding-left: %drem", depth)),
		})
	}
	return items
}
