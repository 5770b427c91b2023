// Package linkage manages the OAuth grant that connects a user to Gmail:
// starting authorization, completing the callback, and lazily refreshing
// the stored token.
package linkage

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"github.com/kozaktomas/face-inbox/internal/database"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrStateMismatch is returned when the callback nonce is missing or differs from the pending one.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("missing authorization code")
)

// State describes where a user is in the linkage lifecycle.
type State int

const (
	Unlinked State = iota
	Linked
	ReauthRequired
)

func (s State) String() string {
	switch s {
	case Linked:
		return "linked"
	case ReauthRequired:
		return "reauth_required"
	default:
		return "unlinked"
	}
}

// Resolution is the result of Resolve. Token is set only when State is Linked.
type Resolution struct {
	State State
	Email string
	Token *oauth2.Token
}

// ProfileFetcher returns the mailbox address for a freshly issued token.
type ProfileFetcher interface {
	ProfileEmail(ctx context.Context, ts oauth2.TokenSource) (string, error)
}

// Manager drives the linkage state machine for one OAuth client.
type Manager struct {
	oauth    *oauth2.Config
	users    database.UserWriter
	profiles ProfileFetcher
	now      func() time.Time
}

// NewOAuthConfig builds a Google OAuth client configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// NewManager creates a linkage manager.
func NewManager(oauth *oauth2.Config, users database.UserWriter, profiles ProfileFetcher) *Manager {
	return &Manager{
		oauth:    oauth,
		users:    users,
		profiles: profiles,
		now:      time.Now,
	}
}

// Begin starts authorization. The caller stores state in the session and
// redirects the browser to the returned URL.
func (m *Manager) Begin() (authURL, state string, err error) {
	state, err = newState()
	if err != nil {
		return "", "", err
	}
	authURL = m.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, state, nil
}

// Complete finishes the callback for userID. pending is the nonce saved by
// Begin, got is the one echoed back by the provider. Nothing is stored
// unless the exchange and profile lookup both succeed.
func (m *Manager) Complete(ctx context.Context, userID, pending, got, code string) (*database.MailLink, error) {
	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(got)) != 1 {
		return nil, ErrStateMismatch
	}
	if code == "" {
		return nil, ErrMissingCode
	}

	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	email, err := m.profiles.ProfileEmail(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox profile: %w", err)
	}

	link := database.MailLink{
		Email:    email,
		Token:    fromOAuth(token),
		LinkedAt: m.now(),
	}
	if err := m.users.SetMailLink(ctx, userID, link); err != nil {
		return nil, fmt.Errorf("store mail link: %w", err)
	}

	slog.Info("gmail linked", "user_id", userID, "email", email)
	return &link, nil
}

// Resolve returns a usable token for user, refreshing it when expired.
// A refreshed token is persisted before it is returned. When the provider
// rejects the refresh the link is removed and ReauthRequired is returned.
// Transport failures are returned as errors and leave the link intact.
func (m *Manager) Resolve(ctx context.Context, user *database.User) (Resolution, error) {
	if user == nil || user.Mail == nil {
		return Resolution{State: Unlinked}, nil
	}

	stored := toOAuth(user.Mail.Token)
	if stored.Valid() {
		return Resolution{State: Linked, Email: user.Mail.Email, Token: stored}, nil
	}
	if stored.RefreshToken == "" {
		return Resolution{State: ReauthRequired, Email: user.Mail.Email}, nil
	}

	fresh, err := m.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		if isRevoked(err) {
			slog.Warn("gmail grant revoked, unlinking", "user_id", user.ID, "error", err)
			if cerr := m.users.ClearMailLink(ctx, user.ID); cerr != nil {
				return Resolution{}, fmt.Errorf("clear revoked link: %w", cerr)
			}
			return Resolution{State: ReauthRequired, Email: user.Mail.Email}, nil
		}
		return Resolution{}, fmt.Errorf("refresh token: %w", err)
	}

	if err := m.users.UpdateToken(ctx, user.ID, fromOAuth(fresh)); err != nil {
		return Resolution{}, fmt.Errorf("persist refreshed token: %w", err)
	}
	slog.Debug("gmail token refreshed", "user_id", user.ID, "expiry", fresh.Expiry)

	return Resolution{State: Linked, Email: user.Mail.Email, Token: fresh}, nil
}

// Unlink removes the stored grant.
func (m *Manager) Unlink(ctx context.Context, userID string) error {
	if err := m.users.ClearMailLink(ctx, userID); err != nil {
		return fmt.Errorf("unlink gmail: %w", err)
	}
	return nil
}

// isRevoked reports whether err is a definitive provider rejection of the grant.
func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.Response == nil {
		return re.ErrorCode != ""
	}
	return re.Response.StatusCode >= http.StatusBadRequest && re.Response.StatusCode < http.StatusInternalServerError
}

func newState() (string, error) {
	b := make([]byte, constants.OAuthStateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func fromOAuth(t *oauth2.Token) database.Token {
	return database.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func toOAuth(t database.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}
