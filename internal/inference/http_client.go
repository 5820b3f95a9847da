package inference

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a success body we read. Insights
// documents for long videos run to a few hundred KB; 8MB leaves headroom.
const maxResponseBytes = 8 << 20

// ServiceError represents a non-2xx answer from the inference service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("inference request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and false for client
// errors (4xx), which are considered permanent.
func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to the remote inference service over HTTP. One instance is
// shared by every editing session; requests carry a Bearer token and
// correlation headers.
type HTTPClient struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

func (c *HTTPClient) DetectScenes(ctx context.Context, req SceneRequest) (*SceneResponse, error) {
	if req.Threshold <= 0 {
		req.Threshold = DefaultSceneThreshold
	}

	raw, err := c.post(ctx, "/ai/scenes/detect", req)
	if err != nil {
		return nil, err
	}

	var out SceneResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode scene response: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("scene detection completed",
			"video_id", req.Media.VideoID,
			"scene_count", len(out.Scenes),
		)
	}
	return &out, nil
}

func (c *HTTPClient) GenerateCaptions(ctx context.Context, req CaptionRequest) (*CaptionResponse, error) {
	raw, err := c.post(ctx, "/ai/captions/generate", req)
	if err != nil {
		return nil, err
	}

	var out CaptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode caption response: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("caption generation completed",
			"video_id", req.Media.VideoID,
			"caption_count", len(out.Captions),
		)
	}
	return &out, nil
}

// AnalyzeContent returns the insights document exactly as the service sent
// it. The body is checked for well-formed JSON but never decoded here.
func (c *HTTPClient) AnalyzeContent(ctx context.Context, req AnalyzeRequest) (json.RawMessage, error) {
	raw, err := c.post(ctx, "/ai/content/analyze", req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("inference service returned malformed insights document")
	}

	if c.logger != nil {
		c.logger.Info("content analysis completed",
			"video_id", req.Media.VideoID,
			"body_bytes", len(raw),
		)
	}
	return json.RawMessage(raw), nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal inference payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Cutbench-Request-Id", generateRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Cutbench-Device-Id", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	return respBody, nil
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
