package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"github.com/kozaktomas/face-inbox/internal/gmail"
)

const (
	sessionCookieName      = "face_inbox_session"
	defaultSessionDuration = 24 * time.Hour
)

// Session is the server-held state of one browser.
type Session struct {
	ID                string                 `json:"-"`
	UserID            string                 `json:"user_id,omitempty"`
	BiometricVerified bool                   `json:"biometric_verified"`
	OAuthState        string                 `json:"oauth_state,omitempty"` // pending linkage nonce
	CachedMessages    []gmail.MessageSummary `json:"cached_messages,omitempty"`
	CreatedAt         time.Time              `json:"-"`
	ExpiresAt         time.Time              `json:"-"`
}

// Verified reports whether the session passed face verification for a user.
func (s *Session) Verified() bool {
	return s != nil && s.BiometricVerified && s.UserID != ""
}

func (s *Session) clone() *Session {
	c := *s
	c.CachedMessages = append([]gmail.MessageSummary(nil), s.CachedMessages...)
	return &c
}

// StoredSession is the persisted form of a session.
type StoredSession struct {
	ID        string    `json:"id"`
	Data      []byte    `json:"data"` // JSON-encoded Session fields
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRepository persists sessions across restarts.
type SessionRepository interface {
	Save(ctx context.Context, s *StoredSession) error
	Get(ctx context.Context, sessionID string) (*StoredSession, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionDuration sets the session lifetime.
func WithSessionDuration(d time.Duration) SessionOption {
	return func(sm *SessionManager) {
		if d > 0 {
			sm.duration = d
		}
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) SessionOption {
	return func(sm *SessionManager) {
		sm.secure = secure
	}
}

// SessionManager handles session creation, lookup and persistence.
// Sessions are kept in memory and written through to repo when set.
// Callers always receive copies; changes take effect through Save.
type SessionManager struct {
	secret   []byte
	duration time.Duration
	secure   bool
	repo     SessionRepository
	sessions map[string]*Session
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager. An empty secret is replaced
// by a random one, which invalidates cookies on restart. repo may be nil.
func NewSessionManager(secret string, repo SessionRepository, opts ...SessionOption) *SessionManager {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("session secret: " + err.Error())
		}
		slog.Warn("WEB_SESSION_SECRET not set, using a random secret; sessions will not survive restarts")
	}

	sm := &SessionManager{
		secret:   key,
		duration: defaultSessionDuration,
		repo:     repo,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sm)
	}

	go sm.cleanupLoop(constants.SessionCleanupInterval)
	return sm
}

// Stop ends the background cleanup. It is safe to call more than once.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// CreateSession starts an empty session.
func (sm *SessionManager) CreateSession(ctx context.Context) (*Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:        base64.RawURLEncoding.EncodeToString(idBytes),
		CreatedAt: now,
		ExpiresAt: now.Add(sm.duration),
	}
	if err := sm.Save(ctx, s); err != nil {
		return nil, err
	}
	return s.clone(), nil
}

// GetSession returns a copy of the session, or nil when unknown or expired.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) *Session {
	sm.mu.RLock()
	s, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !ok {
		s = sm.load(ctx, sessionID)
		if s == nil {
			return nil
		}
	}

	if time.Now().After(s.ExpiresAt) {
		sm.DeleteSession(ctx, sessionID)
		return nil
	}
	return s.clone()
}

// load fetches a session from the repository into memory.
func (sm *SessionManager) load(ctx context.Context, sessionID string) *Session {
	if sm.repo == nil {
		return nil
	}
	stored, err := sm.repo.Get(ctx, sessionID)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		return nil
	}
	if stored == nil {
		return nil
	}

	s := &Session{}
	if err := json.Unmarshal(stored.Data, s); err != nil {
		slog.Error("failed to decode stored session", "error", err)
		return nil
	}
	s.ID, s.CreatedAt, s.ExpiresAt = stored.ID, stored.CreatedAt, stored.ExpiresAt

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()
	return s
}

// Save stores a copy of s, replacing the previous state of the session.
func (sm *SessionManager) Save(ctx context.Context, s *Session) error {
	stored := s.clone()

	sm.mu.Lock()
	sm.sessions[s.ID] = stored
	sm.mu.Unlock()

	if sm.repo == nil {
		return nil
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return sm.repo.Save(ctx, &StoredSession{
		ID:        stored.ID,
		Data:      data,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	})
}

// DeleteSession removes a session. Unknown ids are ignored.
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if sm.repo != nil {
		if err := sm.repo.Delete(ctx, sessionID); err != nil {
			slog.Error("failed to delete session", "error", err)
		}
	}
}

// Destroy deletes the request's session (if any) and clears the cookie.
func (sm *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) {
	if id, ok := sm.sessionIDFromRequest(r); ok {
		sm.DeleteSession(r.Context(), id)
	}
	sm.ClearSessionCookie(w)
}

// GetOrCreate returns the request's session, creating and setting a new one when absent.
func (sm *SessionManager) GetOrCreate(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if s := sm.GetSessionFromRequest(r); s != nil {
		return s, nil
	}
	s, err := sm.CreateSession(r.Context())
	if err != nil {
		return nil, err
	}
	sm.SetSessionCookie(w, r, s)
	return s, nil
}

// SetSessionCookie sets the signed session cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID + "." + sm.signData(session.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.duration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest returns the session named by the request cookie, or nil.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	id, ok := sm.sessionIDFromRequest(r)
	if !ok {
		return nil
	}
	return sm.GetSession(r.Context(), id)
}

func (sm *SessionManager) sessionIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	id, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || !sm.verifySignature(id, signature) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.purgeExpired(context.Background())
		}
	}
}

// purgeExpired drops expired sessions from memory and the repository.
func (sm *SessionManager) purgeExpired(ctx context.Context) {
	now := time.Now()
	sm.mu.Lock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	if sm.repo == nil {
		return
	}
	n, err := sm.repo.DeleteExpired(ctx)
	if err != nil {
		slog.Error("failed to delete expired sessions", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("expired sessions removed", "count", n)
	}
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
