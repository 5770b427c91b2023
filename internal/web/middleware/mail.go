package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/gmail"
	"github.com/kozaktomas/face-inbox/internal/linkage"
	"golang.org/x/oauth2"
)

const mailContextKey contextKey = "mail"

// TokenResolver yields a usable token for the verified user.
type TokenResolver interface {
	Resolve(ctx context.Context, user *database.User) (linkage.Resolution, error)
}

// BridgeFactory opens a mailbox bridge for a token.
type BridgeFactory interface {
	New(ctx context.Context, ts oauth2.TokenSource) (*gmail.Bridge, error)
}

// WithMailBridge resolves the user's Gmail grant and adds a bridge to the
// context. Must run after RequireVerified. Unlinked users and revoked grants
// are sent to /gmail_auth (pages) or answered with gmail_not_connected /
// reauth_required (JSON).
func WithMailBridge(resolver TokenResolver, factory BridgeFactory, mode DenyMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if user == nil {
				deny(w, r, mode)
				return
			}

			res, err := resolver.Resolve(r.Context(), user)
			if err != nil {
				slog.Error("failed to resolve gmail token", "user_id", user.ID, "error", err)
				mailFail(w, mode)
				return
			}

			switch res.State {
			case linkage.Unlinked:
				mailRedirect(w, r, mode, "gmail_not_connected")
				return
			case linkage.ReauthRequired:
				mailRedirect(w, r, mode, "reauth_required")
				return
			}

			bridge, err := factory.New(r.Context(), oauth2.StaticTokenSource(res.Token))
			if err != nil {
				slog.Error("failed to open gmail bridge", "user_id", user.ID, "error", err)
				mailFail(w, mode)
				return
			}

			ctx := context.WithValue(r.Context(), mailContextKey, bridge)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func mailRedirect(w http.ResponseWriter, r *http.Request, mode DenyMode, status string) {
	if mode == DenyJSON {
		writeStatus(w, http.StatusOK, status)
		return
	}
	http.Redirect(w, r, "/gmail_auth", http.StatusFound)
}

func mailFail(w http.ResponseWriter, mode DenyMode) {
	if mode == DenyJSON {
		writeStatus(w, http.StatusBadGateway, "error")
		return
	}
	http.Error(w, "mail provider unavailable", http.StatusBadGateway)
}

// GetBridgeFromContext retrieves the mailbox bridge from the request context
func GetBridgeFromContext(ctx context.Context) *gmail.Bridge {
	b, ok := ctx.Value(mailContextKey).(*gmail.Bridge)
	if !ok {
		return nil
	}
	return b
}

// SetBridgeInContext adds a bridge to the context.
func SetBridgeInContext(ctx context.Context, b *gmail.Bridge) context.Context {
	return context.WithValue(ctx, mailContextKey, b)
}
