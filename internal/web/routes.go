package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-inbox/internal/web/handlers"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
	"github.com/kozaktomas/face-inbox/internal/web/static"
)

func (s *Server) setupRoutes() {
	sm := s.sessionManager

	// Create handlers
	pagesHandler := handlers.NewPagesHandler(s.renderer)
	faceHandler := handlers.NewFaceHandler(sm, s.deps.Matcher, s.config.Face.MaxImageSize)
	authHandler := handlers.NewAuthHandler(sm)
	gmailHandler := handlers.NewGmailHandler(sm, s.deps.Linkage, s.renderer)

	// Health check and assets (no auth required)
	s.router.Get("/healthz", handlers.HealthCheck(s.deps.Health...))
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", assetHandler()))

	// Entry pages and face endpoints
	s.router.Get("/", pagesHandler.Index)
	s.router.Get("/register", pagesHandler.Register)
	s.router.Post("/verify_face", faceHandler.VerifyFace)
	s.router.Post("/save_face", faceHandler.SaveFace)
	s.router.Get("/logout", authHandler.Logout)

	// Pages for verified users; rejections go back to the entry page
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireVerified(sm, s.deps.Users, middleware.DenyRedirect))

		r.Get("/dashboard", pagesHandler.Dashboard)
		r.Get("/compose", pagesHandler.Compose)
		r.Get("/gmail", gmailHandler.Dispatch)
		r.Get("/gmail_auth", gmailHandler.Authorize)
		r.Get("/gmail_callback", gmailHandler.Callback)

		// Mailbox pages get a Gmail bridge injected
		r.Group(func(r chi.Router) {
			r.Use(middleware.WithMailBridge(s.deps.Linkage, s.deps.Mail, middleware.DenyRedirect))

			r.Get("/gmail_inbox", gmailHandler.Inbox)
			r.Get("/open_email/{index}", gmailHandler.OpenEmail)
			r.Get("/gmail_sent", gmailHandler.Sent)
			r.Get("/open_sent/{id}", gmailHandler.OpenSent)
		})
	})

	// JSON mail actions
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireVerified(sm, s.deps.Users, middleware.DenyJSON))
		r.Use(middleware.WithMailBridge(s.deps.Linkage, s.deps.Mail, middleware.DenyJSON))

		r.Post("/send_mail", gmailHandler.SendMail)
		r.Post("/reply_mail", gmailHandler.ReplyMail)
	})
}

// assetHandler serves the embedded scripts and styles.
func assetHandler() http.Handler {
	files := http.FileServer(static.Assets())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
