package project

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// Project is an editing project. Each project owns its imported source
// videos, one timeline document, overlay items, and an insights document.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SourceVideo is an imported media file together with its probed metadata.
// The agent references media in place; files are never copied into the
// data directory.
type SourceVideo struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FrameRate  float64   `json:"frameRate"`
	HasAudio   bool      `json:"hasAudio"`
	SizeBytes  int64     `json:"sizeBytes"`
	ImportedAt time.Time `json:"importedAt"`
}

const (
	JobTypeExport   = "export"
	JobTypeAnalysis = "analysis"

	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a unit of background work. Payload carries the type-specific
// request and Result the type-specific outcome, both as raw JSON so the
// repository stays agnostic of job kinds.
type Job struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideoFile reports whether the filename carries a supported video
// extension.
func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}
