package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-inbox/internal/database"
)

func TestPages(t *testing.T) {
	h := NewPagesHandler(newTestRenderer(t))
	sm := newTestSessionManager(t)
	linked := &database.User{
		ID:        "user-1",
		CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Mail:      &database.MailLink{Email: "owner@example.com"},
	}
	unlinked := &database.User{ID: "user-2", CreatedAt: time.Now()}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		user    *database.User
		want    []string
	}{
		{"index", h.Index, nil, []string{`data-endpoint="/verify_face"`, "/assets/camera.js"}},
		{"register", h.Register, nil, []string{`data-endpoint="/save_face"`}},
		{"dashboard linked", h.Dashboard, linked, []string{"owner@example.com", "02 Mar 2024", "/gmail_inbox"}},
		{"dashboard unlinked", h.Dashboard, unlinked, []string{"Connect Gmail", `href="/gmail"`}},
		{"compose", h.Compose, linked, []string{`data-endpoint="/send_mail"`, "/assets/mail.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = requestAs(http.MethodGet, "/", nil, verifiedSession(t, sm, tt.user), tt.user)
			}
			recorder := httptest.NewRecorder()
			tt.handler(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			if ct := recorder.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			body := recorder.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("page missing %q", want)
				}
			}
		})
	}
}

func TestRenderer_UnknownPage(t *testing.T) {
	recorder := httptest.NewRecorder()
	newTestRenderer(t).Render(recorder, http.StatusOK, "missing", pageData{})
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
