// Package facemodel is an HTTP client for the face model service. The
// service wraps the learned detection and embedding models behind two
// endpoints: /detect/face returns face bounding boxes with descriptors,
// /embed/face returns the descriptor of an already-cropped face image.
package facemodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8000"

// Client talks to the face model service.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a face model service client.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Detection is a single detected face reported by the service.
type Detection struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixel coordinates
	DetScore  float64   `json:"det_score"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

// DetectResponse is the response of the /detect/face endpoint.
type DetectResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []Detection `json:"faces"`
	Model      string      `json:"model"`
}

type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// postImage posts image bytes as a multipart form to the given endpoint.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
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
		return nil, fmt.Errorf("model service error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces runs face detection on a full frame and returns bounding
// boxes. Zero detections is a normal result, not an error.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*DetectResponse, error) {
	body, err := c.postImage(ctx, "/detect/face", imageData)
	if err != nil {
		return nil, err
	}

	var detResp DetectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &detResp, nil
}

// EmbedFace computes the descriptor of a cropped, already-normalized face
// image. A degenerate crop the model cannot embed yields an empty
// descriptor, which the caller must treat as "no descriptor", not an error.
func (c *Client) EmbedFace(ctx context.Context, imageData []byte) ([]float32, error) {
	body, err := c.postImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return embResp.Embedding, nil
}
