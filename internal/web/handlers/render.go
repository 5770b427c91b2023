package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/gmail"
	"github.com/kozaktomas/face-inbox/internal/web/static"
)

// pageData is passed to every page template.
type pageData struct {
	User     *database.User
	Messages []gmail.MessageSummary
	Message  *gmail.Message
	AutoRead bool
	Sent     bool
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	pages, err := static.Pages(template.FuncMap{})
	if err != nil {
		return nil, err
	}
	return &Renderer{pages: pages}, nil
}

// Render writes the named page. The page is executed into a buffer first so
// a template error never leaves a half-written response.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := rd.pages[name]
	if !ok {
		slog.Error("unknown page template", "page", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes()) //nolint:errcheck // client gone
}
