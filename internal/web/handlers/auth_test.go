package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-inbox/internal/database"
)

func TestLogout_Twice(t *testing.T) {
	sm := newTestSessionManager(t)
	h := NewAuthHandler(sm)
	s := verifiedSession(t, sm, &database.User{ID: "user-1"})

	// Obtain a signed cookie for the stored session.
	cookieRec := httptest.NewRecorder()
	sm.SetSessionCookie(cookieRec, httptest.NewRequest(http.MethodGet, "/", nil), s)
	cookie := lastCookie(cookieRec, "face_inbox_session")

	for i := range 2 {
		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		req.AddCookie(cookie)
		recorder := httptest.NewRecorder()
		h.Logout(recorder, req)

		assertRedirect(t, recorder, "/")
		if c := lastCookie(recorder, "face_inbox_session"); c == nil || c.MaxAge >= 0 {
			t.Errorf("logout %d: cookie not cleared", i+1)
		}
		if sm.GetSessionFromRequest(req) != nil {
			t.Errorf("logout %d: session still valid", i+1)
		}
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	h := NewAuthHandler(newTestSessionManager(t))
	recorder := httptest.NewRecorder()
	h.Logout(recorder, httptest.NewRequest(http.MethodGet, "/logout", nil))
	assertRedirect(t, recorder, "/")
}
