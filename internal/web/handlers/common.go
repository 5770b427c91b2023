package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Status values shared by the JSON endpoints.
const (
	statusSuccess       = "success"
	statusFail          = "fail"
	statusNotFound      = "not_found"
	statusRegistered    = "registered"
	statusAlreadyExists = "already_registered"
	statusMissingFields = "missing_fields"
	statusError         = "error"
)

// statusResponse is the body of every face and mail JSON endpoint.
type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondStatus sends {"status": status}.
func respondStatus(w http.ResponseWriter, code int, status string) {
	respondJSON(w, code, statusResponse{Status: status})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// Pinger checks a backing store.
type Pinger func(ctx context.Context) error

// HealthCheck answers ok when every pinger succeeds within two seconds,
// 503 otherwise.
func HealthCheck(pingers ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, ping := range pingers {
			if err := ping(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
