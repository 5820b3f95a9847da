package export

import (
	"encoding/json"
	"fmt"
)

// RenderManifest is the video export. The agent hands this to an external
// renderer instead of encoding anything itself: the EDL describes the edit,
// Sources lists where the media lives, Settings carries the requested output.
type RenderManifest struct {
	Version     string          `json:"version"`
	ProjectID   string          `json:"projectId"`
	ProjectName string          `json:"projectName"`
	Settings    VideoSpec       `json:"settings"`
	EDL         string          `json:"edl"`
	Sources     []SourceMedia   `json:"sources"`
	Summary     TimelineSummary `json:"summary"`
}

// GenerateRenderManifest builds the video export manifest.
func GenerateRenderManifest(in Input, spec VideoSpec) ([]byte, error) {
	manifest := RenderManifest{
		Version:     "1.0",
		ProjectID:   in.ProjectID,
		ProjectName: in.ProjectName,
		Settings:    spec.withDefaults(),
		EDL:         GenerateEDL(in),
		Sources:     in.Media,
		Summary:     summarize(in),
	}
	if manifest.Sources == nil {
		manifest.Sources = []SourceMedia{}
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal render manifest: %w", err)
	}
	return out, nil
}
