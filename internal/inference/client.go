package inference

import (
	"context"
	"encoding/json"
	"log/slog"
)

// DefaultSceneThreshold is the content-change threshold used when a scene
// detection request does not set one. It matches the tuning the analysis
// service ships with.
const DefaultSceneThreshold = 27.0

// MediaRef identifies the source video a request is about. The inference
// service resolves the media from the id; the path and duration travel along
// so the service can skip a probe.
type MediaRef struct {
	VideoID  string  `json:"videoId"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// Scene is one detected scene, in seconds from the start of the source.
type Scene struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Caption is one transcribed speech segment.
type Caption struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type SceneRequest struct {
	Media     MediaRef `json:"media"`
	Threshold float64  `json:"threshold,omitempty"`
}

type SceneResponse struct {
	Scenes []Scene `json:"scenes"`
}

type CaptionRequest struct {
	Media MediaRef `json:"media"`
	Model string   `json:"model,omitempty"`
}

type CaptionResponse struct {
	Captions []Caption `json:"captions"`
}

// AnalyzeRequest carries everything the content analyzer looks at: the media
// reference, the transcript, and the current timeline document (opaque here,
// the service reads clip boundaries out of it).
type AnalyzeRequest struct {
	Media    MediaRef        `json:"media"`
	Captions []Caption       `json:"captions"`
	Timeline json.RawMessage `json:"timeline,omitempty"`
}

// Client is the remote analysis surface the editor delegates to. AnalyzeContent
// returns the insights document as raw bytes; callers store and parse it
// without re-serializing, so whatever the service sent is what gets kept.
type Client interface {
	DetectScenes(ctx context.Context, req SceneRequest) (*SceneResponse, error)
	GenerateCaptions(ctx context.Context, req CaptionRequest) (*CaptionResponse, error)
	AnalyzeContent(ctx context.Context, req AnalyzeRequest) (json.RawMessage, error)
}

// StubClient satisfies Client without a remote service. It answers every
// request with empty results so the editor stays usable offline.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) DetectScenes(ctx context.Context, req SceneRequest) (*SceneResponse, error) {
	if c.logger != nil {
		c.logger.Info("inference stub: scene detection requested", "video_id", req.Media.VideoID)
	}
	return &SceneResponse{Scenes: []Scene{}}, nil
}

func (c *StubClient) GenerateCaptions(ctx context.Context, req CaptionRequest) (*CaptionResponse, error) {
	if c.logger != nil {
		c.logger.Info("inference stub: caption generation requested", "video_id", req.Media.VideoID)
	}
	return &CaptionResponse{Captions: []Caption{}}, nil
}

func (c *StubClient) AnalyzeContent(ctx context.Context, req AnalyzeRequest) (json.RawMessage, error) {
	if c.logger != nil {
		c.logger.Info("inference stub: content analysis requested", "video_id", req.Media.VideoID)
	}
	return json.RawMessage(`{"suggestions":[]}`), nil
}
