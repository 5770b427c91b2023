package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/web/middleware"
)

// PagesHandler serves the pages that need no mailbox access.
type PagesHandler struct {
	renderer *Renderer
}

// NewPagesHandler creates a new pages handler
func NewPagesHandler(renderer *Renderer) *PagesHandler {
	return &PagesHandler{renderer: renderer}
}

// Index serves the face verification entry page.
func (h *PagesHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "biometric", pageData{})
}

// Register serves the enrolment page.
func (h *PagesHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "register", pageData{})
}

// Dashboard serves the landing page of a verified user.
func (h *PagesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "dashboard", pageData{
		User: middleware.GetUserFromContext(r.Context()),
	})
}

// Compose serves the new message form.
func (h *PagesHandler) Compose(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "compose", pageData{
		User: middleware.GetUserFromContext(r.Context()),
	})
}
