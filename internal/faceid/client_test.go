package faceid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFaceServer(t *testing.T, status int, resp any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientEncode(t *testing.T) {
	srv := newFaceServer(t, http.StatusOK, map[string]any{
		"faces_count": 2,
		"faces": []map[string]any{
			{"face_index": 0, "dim": 3, "embedding": []float32{0.1, 0.2, 0.3}},
			{"face_index": 1, "dim": 3, "embedding": []float32{0.4, 0.5, 0.6}},
		},
	})
	defer srv.Close()

	c := NewClient(srv.URL+"/", 3)
	got, err := c.Encode(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 encodings, got %d", len(got))
	}
	if got[1][2] != 0.6 {
		t.Errorf("unexpected second encoding %v", got[1])
	}
}

func TestClientEncode_NoFaces(t *testing.T) {
	srv := newFaceServer(t, http.StatusOK, map[string]any{"faces_count": 0, "faces": []any{}})
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	got, err := c.Encode(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no encodings, got %d", len(got))
	}

	if _, err := First(context.Background(), c, []byte("jpeg")); !errors.Is(err, ErrNoFace) {
		t.Errorf("First() error = %v, want ErrNoFace", err)
	}
}

func TestClientEncode_DimensionMismatch(t *testing.T) {
	srv := newFaceServer(t, http.StatusOK, map[string]any{
		"faces": []map[string]any{{"face_index": 0, "embedding": []float32{1, 2}}},
	})
	defer srv.Close()

	if _, err := NewClient(srv.URL, 128).Encode(context.Background(), []byte("jpeg")); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestClientEncode_ServerError(t *testing.T) {
	srv := newFaceServer(t, http.StatusInternalServerError, map[string]string{"detail": "model not loaded"})
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Encode(context.Background(), []byte("jpeg"))
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status error, got %v", err)
	}
}
