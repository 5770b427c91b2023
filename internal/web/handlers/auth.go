package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/web/middleware"
)

// AuthHandler handles session teardown.
type AuthHandler struct {
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{sessionManager: sm}
}

// Logout destroys the whole session and returns to the entry page.
// Calling it without a session is harmless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}
