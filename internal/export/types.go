package export

import (
	"fmt"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// Kind selects what an export produces.
type Kind string

const (
	// KindData exports the timeline document itself (json, xml, or edl).
	KindData Kind = "data"
	// KindReport exports an edit-session summary as JSON.
	KindReport Kind = "report"
	// KindVideo exports a render manifest for an external renderer. The
	// agent never encodes video.
	KindVideo Kind = "video"
)

// Format selects the serialization of a data export.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatEDL  Format = "edl"
)

// Request is a closed union over the export kinds. Exactly one payload field
// may be set, and it must match Kind; Validate enforces this before any
// artifact is built.
type Request struct {
	Kind   Kind        `json:"kind"`
	Data   *DataSpec   `json:"data,omitempty"`
	Report *ReportSpec `json:"report,omitempty"`
	Video  *VideoSpec  `json:"video,omitempty"`
}

// DataSpec configures a timeline document export.
type DataSpec struct {
	Format Format `json:"format"`
}

// ReportSpec configures a summary report. AcceptedSuggestionIDs restricts the
// report's suggestion section to the ids the user actually applied.
type ReportSpec struct {
	AcceptedSuggestionIDs []string `json:"acceptedSuggestionIds,omitempty"`
}

// VideoSpec carries the render settings handed to the external renderer.
type VideoSpec struct {
	Resolution string `json:"resolution,omitempty"`
	Container  string `json:"container,omitempty"`
	Quality    string `json:"quality,omitempty"`
}

func (s VideoSpec) withDefaults() VideoSpec {
	if s.Resolution == "" {
		s.Resolution = "720p"
	}
	if s.Container == "" {
		s.Container = "mp4"
	}
	if s.Quality == "" {
		s.Quality = "standard"
	}
	return s
}

func (r Request) Validate() error {
	switch r.Kind {
	case KindData:
		if r.Data == nil {
			return fmt.Errorf("data export requires a data payload")
		}
		if r.Report != nil || r.Video != nil {
			return fmt.Errorf("data export must not carry report or video payloads")
		}
		switch r.Data.Format {
		case FormatJSON, FormatXML, FormatEDL:
		default:
			return fmt.Errorf("unknown data format %q", r.Data.Format)
		}
	case KindReport:
		if r.Report == nil {
			return fmt.Errorf("report export requires a report payload")
		}
		if r.Data != nil || r.Video != nil {
			return fmt.Errorf("report export must not carry data or video payloads")
		}
	case KindVideo:
		if r.Video == nil {
			return fmt.Errorf("video export requires a video payload")
		}
		if r.Data != nil || r.Report != nil {
			return fmt.Errorf("video export must not carry data or report payloads")
		}
	default:
		return fmt.Errorf("unknown export kind %q", r.Kind)
	}
	return nil
}

// SourceMedia is what the exporters need to know about one source video.
type SourceMedia struct {
	ID        string  `json:"id"`
	Filename  string  `json:"filename"`
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frameRate"`
	HasAudio  bool    `json:"hasAudio"`
}

// SuggestionTally counts suggestions by review status.
type SuggestionTally struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Ignored int `json:"ignored"`
	Pending int `json:"pending"`
}

// Input is the project snapshot an export runs against. Clips in the
// timeline document are position-ordered.
type Input struct {
	ProjectID   string
	ProjectName string
	Timeline    timeline.Data
	Media       []SourceMedia
	Suggestions SuggestionTally
}

func (in Input) mediaByID() map[string]SourceMedia {
	m := make(map[string]SourceMedia, len(in.Media))
	for _, sm := range in.Media {
		m[sm.ID] = sm
	}
	return m
}

// Artifact is one finished export, ready to write to disk or serve.
type Artifact struct {
	Filename    string
	ContentType string
	Bytes       []byte
}
