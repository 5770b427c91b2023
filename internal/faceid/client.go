// Package faceid turns webcam frames into face encodings via the embedding server.
package faceid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultEmbeddingURL = "http://localhost:8000"

var (
	// ErrNoFace is returned by First when the frame contains no detectable face.
	ErrNoFace = errors.New("no face detected")
	// ErrInvalidDataURL is returned when a capture payload cannot be decoded.
	ErrInvalidDataURL = errors.New("invalid image data URL")
	// ErrInvalidImage is returned when the decoded bytes are not a supported image.
	ErrInvalidImage = errors.New("invalid image")
)

// Encoder extracts zero or more face encodings from an image.
type Encoder interface {
	Encode(ctx context.Context, frame []byte) ([][]float32, error)
}

// Client talks to the embedding server's /embed/face endpoint.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a client. A dim of 0 accepts any vector length.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// faceDetection is a single detected face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Encode returns one encoding per detected face, in server order.
func (c *Client) Encode(ctx context.Context, frame []byte) ([][]float32, error) {
	body, err := c.postFrame(ctx, "/embed/face", frame)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	encodings := make([][]float32, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		if c.dim > 0 && len(f.Embedding) != c.dim {
			return nil, fmt.Errorf("face %d: got %d dimensions, want %d", f.FaceIndex, len(f.Embedding), c.dim)
		}
		encodings = append(encodings, f.Embedding)
	}
	return encodings, nil
}

// First returns the first encoding from enc or ErrNoFace.
func First(ctx context.Context, enc Encoder, frame []byte) ([]float32, error) {
	encodings, err := enc.Encode(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(encodings) == 0 {
		return nil, ErrNoFace
	}
	return encodings[0], nil
}

func (c *Client) postFrame(ctx context.Context, endpoint string, frame []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", http.DetectContentType(frame))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
