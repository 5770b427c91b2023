package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/database"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

// DenyMode selects how a gate rejects a request.
type DenyMode int

const (
	// DenyRedirect sends page requests back to the entry page.
	DenyRedirect DenyMode = iota
	// DenyJSON answers API requests with {"status": "unauthorized"}.
	DenyJSON
)

// RequireVerified admits a request only when it carries a session that
// passed face verification for a user that still exists. A session whose
// user has been deleted is destroyed. Rejections never say which check failed.
func RequireVerified(sm *SessionManager, users database.UserReader, mode DenyMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if !session.Verified() {
				deny(w, r, mode)
				return
			}

			user, err := users.Get(r.Context(), session.UserID)
			if errors.Is(err, database.ErrUserNotFound) {
				sm.Destroy(w, r)
				deny(w, r, mode)
				return
			}
			if err != nil {
				slog.Error("failed to resolve session user", "user_id", session.UserID, "error", err)
				fail(w, mode)
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			ctx = SetUserInContext(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, mode DenyMode) {
	if mode == DenyJSON {
		writeStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func fail(w http.ResponseWriter, mode DenyMode) {
	if mode == DenyJSON {
		writeStatus(w, http.StatusInternalServerError, "error")
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`)) //nolint:errcheck // best effort
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use RequireVerified in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetUserFromContext retrieves the verified user from the request context
func GetUserFromContext(ctx context.Context) *database.User {
	user, ok := ctx.Value(userContextKey).(*database.User)
	if !ok {
		return nil
	}
	return user
}

// SetUserInContext adds the verified user to the context.
func SetUserInContext(ctx context.Context, user *database.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
