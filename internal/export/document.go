package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// DataDocument is the full JSON export: the timeline document plus the
// source-video block and a derived summary.
type DataDocument struct {
	Version    string          `json:"version"`
	Generator  string          `json:"generator"`
	ExportedAt string          `json:"exportedAt"`
	ProjectID  string          `json:"projectId"`
	Project    string          `json:"projectName"`
	Timeline   timeline.Data   `json:"timeline"`
	Media      []SourceMedia   `json:"media"`
	Summary    TimelineSummary `json:"summary"`
}

// TimelineSummary condenses the document for reports and data exports.
// KeptTime is the total length of material on the timeline; CutTime is how
// much of the referenced sources was left out.
type TimelineSummary struct {
	ClipCount       int     `json:"clipCount"`
	TransitionCount int     `json:"transitionCount"`
	MarkerCount     int     `json:"markerCount"`
	Duration        float64 `json:"duration"`
	KeptTime        float64 `json:"keptTime"`
	CutTime         float64 `json:"cutTime"`
}

func summarize(in Input) TimelineSummary {
	s := TimelineSummary{
		ClipCount:       len(in.Timeline.Clips),
		TransitionCount: len(in.Timeline.Transitions),
		MarkerCount:     len(in.Timeline.Markers),
		Duration:        in.Timeline.Duration,
	}
	for _, c := range in.Timeline.Clips {
		s.KeptTime += c.OutPoint - c.InPoint
	}

	var sourceTime float64
	for _, sm := range in.Media {
		sourceTime += sm.Duration
	}
	if cut := sourceTime - s.KeptTime; cut > 0 {
		s.CutTime = cut
	}
	return s
}

// GenerateDocument builds the JSON data export.
func GenerateDocument(in Input) ([]byte, error) {
	doc := DataDocument{
		Version:    timeline.DocumentVersion,
		Generator:  "cutbench-agent",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		ProjectID:  in.ProjectID,
		Project:    in.ProjectName,
		Timeline:   in.Timeline,
		Media:      in.Media,
		Summary:    summarize(in),
	}
	if doc.Media == nil {
		doc.Media = []SourceMedia{}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal data document: %w", err)
	}
	return out, nil
}
