package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/gmail"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// newTestSessionManager creates a memory-only session manager stopped at cleanup.
func newTestSessionManager(t *testing.T) *middleware.SessionManager {
	t.Helper()
	sm := middleware.NewSessionManager("test-secret", nil)
	t.Cleanup(sm.Stop)
	return sm
}

// newTestRenderer parses the embedded templates.
func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return rd
}

// verifiedSession stores a verified session for user and returns it.
func verifiedSession(t *testing.T, sm *middleware.SessionManager, user *database.User) *middleware.Session {
	t.Helper()
	s, err := sm.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	s.UserID = user.ID
	s.BiometricVerified = true
	if err := sm.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return s
}

// requestAs creates a request that already passed the verification gate.
func requestAs(method, path string, body any, session *middleware.Session, user *database.User) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := middleware.SetSessionInContext(req.Context(), session)
	ctx = middleware.SetUserInContext(ctx, user)
	return req.WithContext(ctx)
}

// withBridge adds a mailbox bridge to the request context.
func withBridge(r *http.Request, b *gmail.Bridge) *http.Request {
	return r.WithContext(middleware.SetBridgeInContext(r.Context(), b))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// fakeGmail serves the Gmail REST calls made by the bridge.
type fakeGmail struct {
	mu       sync.Mutex
	messages map[string]map[string]any
	labels   map[string][]string
	sent     []map[string]any
	fail     bool
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{messages: map[string]map[string]any{}, labels: map[string][]string{}}
}

func (f *fakeGmail) add(label, id, thread string, headers map[string]string, text string) {
	hs := []map[string]string{}
	for k, v := range headers {
		hs = append(hs, map[string]string{"name": k, "value": v})
	}
	f.messages[id] = map[string]any{
		"id":       id,
		"threadId": thread,
		"payload": map[string]any{
			"mimeType": "text/plain",
			"headers":  hs,
			"body":     map[string]any{"data": base64.URLEncoding.EncodeToString([]byte(text))},
		},
	}
	f.labels[label] = append(f.labels[label], id)
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 503, "message": "backend error"}})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
	switch {
	case path == "messages" && r.Method == http.MethodGet:
		var refs []map[string]string
		for _, id := range f.labels[r.URL.Query().Get("labelIds")] {
			refs = append(refs, map[string]string{"id": id, "threadId": f.messages[id]["threadId"].(string)})
		}
		json.NewEncoder(w).Encode(map[string]any{"messages": refs})
	case path == "messages/send" && r.Method == http.MethodPost:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.sent = append(f.sent, body)
		json.NewEncoder(w).Encode(map[string]any{"id": "sent-1"})
	case strings.HasPrefix(path, "messages/"):
		msg, ok := f.messages[strings.TrimPrefix(path, "messages/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
			return
		}
		json.NewEncoder(w).Encode(msg)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// newTestBridge starts f and returns a bridge talking to it.
func newTestBridge(t *testing.T, f *fakeGmail) *gmail.Bridge {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	factory := gmail.NewFactory(gmail.Settings{},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	b, err := factory.New(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}))
	if err != nil {
		t.Fatalf("factory.New() error = %v", err)
	}
	return b
}

// fakeEncoder returns fixed encodings for every frame.
type fakeEncoder struct {
	encodings [][]float32
	err       error
}

func (f *fakeEncoder) Encode(context.Context, []byte) ([][]float32, error) {
	return f.encodings, f.err
}

// pngDataURL returns a small valid image as a data URL.
func pngDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// lastCookie returns the final Set-Cookie value for name.
func lastCookie(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range recorder.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONStatus checks the "status" field of a JSON response
func assertJSONStatus(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var result statusResponse
	parseJSONResponse(t, recorder, &result)
	if result.Status != expected {
		t.Errorf("expected status '%s', got '%s'", expected, result.Status)
	}
}

// assertRedirect checks for a 302 to location
func assertRedirect(t *testing.T, recorder *httptest.ResponseRecorder, location string) {
	t.Helper()
	assertStatusCode(t, recorder, http.StatusFound)
	if got := recorder.Header().Get("Location"); got != location {
		t.Errorf("expected redirect to '%s', got '%s'", location, got)
	}
}
