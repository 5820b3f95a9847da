package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report is the edit-session summary export.
type Report struct {
	Version     string           `json:"version"`
	ProjectID   string           `json:"projectId"`
	ProjectName string           `json:"projectName"`
	GeneratedAt string           `json:"generatedAt"`
	Timeline    TimelineSummary  `json:"timeline"`
	Suggestions SuggestionReport `json:"suggestions"`
	Media       []MediaReport    `json:"media"`
}

// SuggestionReport is the tally plus the ids the user accepted. Only applied
// suggestions appear in Accepted, whatever the caller passed in.
type SuggestionReport struct {
	SuggestionTally
	Accepted []string `json:"accepted"`
}

type MediaReport struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Duration float64 `json:"duration"`
}

// GenerateReport builds the report export. acceptedIDs is the set of applied
// suggestion ids the report should name.
func GenerateReport(in Input, acceptedIDs []string) ([]byte, error) {
	if acceptedIDs == nil {
		acceptedIDs = []string{}
	}

	media := make([]MediaReport, 0, len(in.Media))
	for _, sm := range in.Media {
		media = append(media, MediaReport{ID: sm.ID, Filename: sm.Filename, Duration: sm.Duration})
	}

	rep := Report{
		Version:     "1.0",
		ProjectID:   in.ProjectID,
		ProjectName: in.ProjectName,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Timeline:    summarize(in),
		Suggestions: SuggestionReport{
			SuggestionTally: in.Suggestions,
			Accepted:        acceptedIDs,
		},
		Media: media,
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return out, nil
}
