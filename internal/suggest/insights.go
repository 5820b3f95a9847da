// Package suggest bridges externally produced AI cut suggestions into the
// timeline. The insights document is read-only input: the raw bytes are
// stored and served back untouched, and per-suggestion review status is
// tracked out-of-band, never written into the document.
package suggest

import (
	"encoding/json"
	"fmt"
)

// Suggestion types produced by the analysis collaborator.
const (
	SuggestionCut        = "cut"
	SuggestionKeep       = "keep"
	SuggestionTrim       = "trim"
	SuggestionTransition = "transition"
)

// Suggestion is one reviewable cut suggestion. Confidence, audio label and
// metrics are carried verbatim from the analysis output.
type Suggestion struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	StartTime  float64         `json:"startTime"`
	EndTime    float64         `json:"endTime"`
	Reason     string          `json:"reason"`
	Confidence float64         `json:"confidence,omitempty"`
	AudioLabel string          `json:"audioLabel,omitempty"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
}

// Summary aggregates the analysis run.
type Summary struct {
	TotalDuration     float64 `json:"totalDuration"`
	SceneCount        int     `json:"sceneCount"`
	SuggestedCuts     int     `json:"suggestedCuts"`
	SuggestedKeeps    int     `json:"suggestedKeeps"`
	AverageConfidence float64 `json:"averageConfidence"`
	ProcessingTime    float64 `json:"processingTime"`
	ModelVersion      string  `json:"modelVersion"`
}

// AudioSegment is a labeled span of the source audio.
type AudioSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

// SceneBoundary is a detected content discontinuity in the source video.
type SceneBoundary struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Insights is the engine's read-only view of the analysis document. Fields
// the engine does not use stay in the raw bytes; this struct is never
// serialized back.
type Insights struct {
	Version         string          `json:"version"`
	ProjectID       string          `json:"projectId"`
	VideoPath       string          `json:"videoPath"`
	CreatedAt       string          `json:"createdAt"`
	Summary         Summary         `json:"summary"`
	Suggestions     []Suggestion    `json:"suggestions"`
	AudioSegments   []AudioSegment  `json:"audioSegments"`
	SceneBoundaries []SceneBoundary `json:"sceneBoundaries"`
}

// ParseInsights decodes an insights document for reading. Suggestions
// missing an id are rejected because the review status map is keyed by it.
func ParseInsights(raw []byte) (*Insights, error) {
	var doc Insights
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse insights document: %w", err)
	}
	for i, s := range doc.Suggestions {
		if s.ID == "" {
			return nil, fmt.Errorf("parse insights document: suggestion %d has no id", i)
		}
	}
	return &doc, nil
}
