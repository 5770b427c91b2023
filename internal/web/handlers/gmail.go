package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-inbox/internal/constants"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/gmail"
	"github.com/kozaktomas/face-inbox/internal/linkage"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
)

// Linker runs the Gmail authorization-code flow.
type Linker interface {
	Begin() (authURL, state string, err error)
	Complete(ctx context.Context, userID, pending, got, code string) (*database.MailLink, error)
}

// GmailHandler handles account linkage and the mailbox pages.
type GmailHandler struct {
	sessionManager *middleware.SessionManager
	linker         Linker
	renderer       *Renderer
}

// NewGmailHandler creates a new Gmail handler
func NewGmailHandler(sm *middleware.SessionManager, linker Linker, renderer *Renderer) *GmailHandler {
	return &GmailHandler{
		sessionManager: sm,
		linker:         linker,
		renderer:       renderer,
	}
}

// Dispatch sends unlinked users to authorization and linked users to the inbox.
func (h *GmailHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if !user.IsLinked() {
		http.Redirect(w, r, "/gmail_auth", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/gmail_inbox", http.StatusFound)
}

// Authorize starts the OAuth flow, remembering the nonce in the session.
func (h *GmailHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.linker.Begin()
	if err != nil {
		slog.Error("failed to start gmail authorization", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	session := middleware.GetSessionFromContext(r.Context())
	session.OAuthState = state
	if err := h.sessionManager.Save(r.Context(), session); err != nil {
		slog.Error("failed to save session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the OAuth flow. The pending nonce is consumed by any
// callback; every failure silently returns to the dashboard.
func (h *GmailHandler) Callback(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	user := middleware.GetUserFromContext(r.Context())

	pending := session.OAuthState
	if pending != "" {
		session.OAuthState = ""
		if err := h.sessionManager.Save(r.Context(), session); err != nil {
			slog.Error("failed to save session", "error", err)
		}
	}

	q := r.URL.Query()
	link, err := h.linker.Complete(r.Context(), user.ID, pending, q.Get("state"), q.Get("code"))
	if err != nil {
		switch {
		case errors.Is(err, linkage.ErrStateMismatch), errors.Is(err, linkage.ErrMissingCode):
			slog.Warn("rejected gmail callback", "user_id", user.ID, "reason", err,
				"provider_error", sanitizeForLog(q.Get("error")))
		default:
			slog.Error("gmail authorization failed", "user_id", user.ID, "error", err)
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	slog.Info("gmail linked", "user_id", user.ID, "email", link.Email)
	http.Redirect(w, r, "/gmail_inbox", http.StatusFound)
}

// Inbox lists the newest inbox messages and caches the listing in the
// session so messages can be opened by position.
func (h *GmailHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	bridge := middleware.GetBridgeFromContext(r.Context())
	messages, err := bridge.ListInbox(r.Context())
	if err != nil {
		h.providerError(w, r, "list inbox", err)
		return
	}

	session := middleware.GetSessionFromContext(r.Context())
	session.CachedMessages = messages
	if err := h.sessionManager.Save(r.Context(), session); err != nil {
		slog.Error("failed to cache inbox listing", "error", err)
	}

	h.renderer.Render(w, http.StatusOK, "inbox", pageData{
		User:     middleware.GetUserFromContext(r.Context()),
		Messages: messages,
	})
}

// OpenEmail shows the message at a position of the cached inbox listing.
// ?read=true starts reading the message aloud.
func (h *GmailHandler) OpenEmail(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Redirect(w, r, "/gmail_inbox", http.StatusFound)
		return
	}
	summary, err := gmail.ResolveIndex(session.CachedMessages, index)
	if err != nil {
		http.Redirect(w, r, "/gmail_inbox", http.StatusFound)
		return
	}

	bridge := middleware.GetBridgeFromContext(r.Context())
	msg, err := bridge.Open(r.Context(), summary.ID)
	if err != nil {
		h.providerError(w, r, "open message", err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "read_email", pageData{
		User:     middleware.GetUserFromContext(r.Context()),
		Message:  msg,
		AutoRead: r.URL.Query().Get("read") == "true",
	})
}

// OpenSent shows a sent message by provider id.
func (h *GmailHandler) OpenSent(w http.ResponseWriter, r *http.Request) {
	bridge := middleware.GetBridgeFromContext(r.Context())
	msg, err := bridge.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.providerError(w, r, "open sent message", err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "read_email", pageData{
		User:    middleware.GetUserFromContext(r.Context()),
		Message: msg,
		Sent:    true,
	})
}

// Sent lists the newest sent messages.
func (h *GmailHandler) Sent(w http.ResponseWriter, r *http.Request) {
	bridge := middleware.GetBridgeFromContext(r.Context())
	messages, err := bridge.ListSent(r.Context())
	if err != nil {
		h.providerError(w, r, "list sent", err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "sent", pageData{
		User:     middleware.GetUserFromContext(r.Context()),
		Messages: messages,
	})
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendMail sends a new message.
func (h *GmailHandler) SendMail(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, constants.MaxMailBodySize, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, statusMissingFields)
		return
	}

	bridge := middleware.GetBridgeFromContext(r.Context())
	id, err := bridge.Send(r.Context(), req.To, req.Subject, req.Body)
	h.respondSent(w, r, "send", id, err)
}

type replyRequest struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// ReplyMail answers a message in its thread.
func (h *GmailHandler) ReplyMail(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(w, r, constants.MaxMailBodySize, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, statusMissingFields)
		return
	}

	bridge := middleware.GetBridgeFromContext(r.Context())
	id, err := bridge.Reply(r.Context(), req.MessageID, req.ThreadID, req.Message)
	h.respondSent(w, r, "reply", id, err)
}

func (h *GmailHandler) respondSent(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	switch {
	case errors.Is(err, gmail.ErrMissingFields), errors.Is(err, gmail.ErrInvalidRecipient):
		respondStatus(w, http.StatusOK, statusMissingFields)
	case err != nil:
		user := middleware.GetUserFromContext(r.Context())
		slog.Error("gmail "+op+" failed", "user_id", user.ID, "error", err)
		respondStatus(w, http.StatusBadGateway, statusError)
	default:
		respondJSON(w, http.StatusOK, statusResponse{Status: statusSuccess, ID: id})
	}
}

func (h *GmailHandler) providerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	user := middleware.GetUserFromContext(r.Context())
	slog.Error("gmail "+op+" failed", "user_id", user.ID, "error", err)
	http.Error(w, "mail provider unavailable", http.StatusBadGateway)
}
