package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"github.com/kozaktomas/face-inbox/internal/faceid"
	"github.com/kozaktomas/face-inbox/internal/facematch"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
)

// FaceMatcher decides login and enrolment outcomes for a captured frame.
type FaceMatcher interface {
	Authenticate(ctx context.Context, frame []byte) (facematch.AuthResult, error)
	Register(ctx context.Context, frame []byte) (facematch.RegisterResult, error)
}

// FaceHandler handles the face verification and registration endpoints.
type FaceHandler struct {
	sessionManager *middleware.SessionManager
	matcher        FaceMatcher
	maxImageSize   int
}

// NewFaceHandler creates a new face handler
func NewFaceHandler(sm *middleware.SessionManager, matcher FaceMatcher, maxImageSize int) *FaceHandler {
	if maxImageSize <= 0 {
		maxImageSize = constants.DefaultMaxImageSize
	}
	return &FaceHandler{
		sessionManager: sm,
		matcher:        matcher,
		maxImageSize:   maxImageSize,
	}
}

// captureRequest is the body of /verify_face and /save_face.
type captureRequest struct {
	Image string `json:"image"`
}

// readFrame decodes the captured frame. A false return means the request
// carried no usable image and a "fail" status was already written.
func (h *FaceHandler) readFrame(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var req captureRequest
	if err := decodeJSON(w, r, constants.MaxFrameBodySize, &req); err != nil || req.Image == "" {
		respondStatus(w, http.StatusOK, statusFail)
		return nil, false
	}

	frame, err := faceid.DecodeCapture(req.Image, h.maxImageSize)
	if err != nil {
		slog.Debug("rejected capture", "error", err)
		respondStatus(w, http.StatusOK, statusFail)
		return nil, false
	}
	return frame, true
}

// VerifyFace matches the captured frame against enrolled users and, on a
// match, binds the user to a fresh verified session.
func (h *FaceHandler) VerifyFace(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.readFrame(w, r)
	if !ok {
		return
	}

	result, err := h.matcher.Authenticate(r.Context(), frame)
	if err != nil {
		slog.Error("face verification failed", "error", err)
		respondStatus(w, http.StatusBadGateway, statusFail)
		return
	}

	switch result.Status {
	case facematch.StatusNoFaceLogin:
		respondStatus(w, http.StatusOK, statusFail)
		return
	case facematch.StatusNoMatch:
		respondStatus(w, http.StatusOK, statusNotFound)
		return
	}

	// A new identity always starts from a new session id.
	h.sessionManager.Destroy(w, r)
	session, err := h.sessionManager.CreateSession(r.Context())
	if err != nil {
		slog.Error("failed to create session", "error", err)
		respondStatus(w, http.StatusInternalServerError, statusFail)
		return
	}
	session.UserID = result.UserID
	session.BiometricVerified = true
	if err := h.sessionManager.Save(r.Context(), session); err != nil {
		slog.Error("failed to save session", "user_id", result.UserID, "error", err)
		respondStatus(w, http.StatusInternalServerError, statusFail)
		return
	}
	h.sessionManager.SetSessionCookie(w, r, session)

	slog.Info("face verified", "user_id", result.UserID, "distance", result.Distance)
	respondStatus(w, http.StatusOK, statusSuccess)
}

// SaveFace enrols the captured face as a new user unless it is already known.
func (h *FaceHandler) SaveFace(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.readFrame(w, r)
	if !ok {
		return
	}

	result, err := h.matcher.Register(r.Context(), frame)
	if err != nil {
		slog.Error("face registration failed", "error", err)
		respondStatus(w, http.StatusBadGateway, statusFail)
		return
	}

	switch result.Status {
	case facematch.StatusRegistered:
		respondStatus(w, http.StatusOK, statusRegistered)
	case facematch.StatusDuplicate:
		respondStatus(w, http.StatusOK, statusAlreadyExists)
	default:
		respondStatus(w, http.StatusOK, statusFail)
	}
}
