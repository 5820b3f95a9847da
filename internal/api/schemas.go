package api

import (
	"github.com/cutbench/cutbench-agent/internal/overlay"
	"github.com/cutbench/cutbench-agent/internal/playback"
	"github.com/cutbench/cutbench-agent/internal/suggest"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string               `json:"state"`
	Version       string               `json:"version"`
	ProjectsCount int                  `json:"projects_count"`
	VideosCount   int                  `json:"videos_count"`
	JobsRunning   int                  `json:"jobs_running"`
	OpenSessions  int                  `json:"open_sessions"`
	Media         *MediaStatusResponse `json:"media,omitempty"`
}

type MediaStatusResponse struct {
	FFprobeAvailable bool   `json:"ffprobe_available"`
	FFprobeVersion   string `json:"ffprobe_version,omitempty"`
	LastProbeAt      string `json:"last_probe_at,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type RenameProjectRequest struct {
	Name string `json:"name"`
}

type ImportVideoRequest struct {
	Path string `json:"path"`
}

// TimelineResponse pairs the document with the session-local selection,
// which lives outside the persisted document.
type TimelineResponse struct {
	Timeline       timeline.Data `json:"timeline"`
	SelectedClipID string        `json:"selectedClipId,omitempty"`
}

type AddClipRequest struct {
	SourceVideoID string   `json:"sourceVideoId"`
	InPoint       float64  `json:"inPoint"`
	OutPoint      *float64 `json:"outPoint,omitempty"`
	Speed         float64  `json:"speed,omitempty"`
	Label         string   `json:"label,omitempty"`
}

type UpdateClipRequest struct {
	InPoint  *float64 `json:"inPoint,omitempty"`
	OutPoint *float64 `json:"outPoint,omitempty"`
	Label    *string  `json:"label,omitempty"`
}

type SplitClipRequest struct {
	Time float64 `json:"time"`
}

type TrimClipRequest struct {
	Time float64 `json:"time"`
}

type ClipSpeedRequest struct {
	Speed float64 `json:"speed"`
}

type ReorderClipsRequest struct {
	ClipIDs []string `json:"clipIds"`
}

type SelectClipRequest struct {
	ClipID string `json:"clipId"`
}

type TransitionRequest struct {
	FromClipID string  `json:"fromClipId"`
	ToClipID   string  `json:"toClipId"`
	Type       string  `json:"type"`
	Duration   float64 `json:"duration"`
}

type AutoTransitionsRequest struct {
	Type string `json:"type"`
}

type TransitionTypesResponse struct {
	Types []string `json:"types"`
}

type AddMarkerRequest struct {
	Position float64 `json:"position"`
	Label    string  `json:"label,omitempty"`
	Color    string  `json:"color,omitempty"`
	Type     string  `json:"type,omitempty"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type PlaybackResponse struct {
	State playback.State `json:"state"`
}

type AddOverlayRequest struct {
	Kind     string            `json:"kind"`
	Text     string            `json:"text"`
	Start    float64           `json:"start"`
	End      float64           `json:"end"`
	Position *overlay.Position `json:"position,omitempty"`
	Style    overlay.Style     `json:"style,omitempty"`
}

type UpdateOverlayRequest struct {
	Text     *string           `json:"text,omitempty"`
	Start    *float64          `json:"start,omitempty"`
	End      *float64          `json:"end,omitempty"`
	Position *overlay.Position `json:"position,omitempty"`
	Style    *overlay.Style    `json:"style,omitempty"`
}

type OverlaysResponse struct {
	Captions  []overlay.Item `json:"captions"`
	Texts     []overlay.Item `json:"texts"`
	VideoRect overlay.Rect   `json:"videoRect"`
}

// ViewportRequest updates the compositor's geometry. Zero fields are
// ignored so the browser can report container and source dimensions
// independently.
type ViewportRequest struct {
	ContainerWidth  float64 `json:"containerWidth,omitempty"`
	ContainerHeight float64 `json:"containerHeight,omitempty"`
	SourceWidth     float64 `json:"sourceWidth,omitempty"`
	SourceHeight    float64 `json:"sourceHeight,omitempty"`
}

type ViewportResponse struct {
	VideoRect overlay.Rect `json:"videoRect"`
}

type SuggestionsResponse struct {
	Suggestions []suggest.Suggestion      `json:"suggestions"`
	Statuses    map[string]suggest.Status `json:"statuses"`
}

type AnalyzeRequest struct {
	VideoID string `json:"videoId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
