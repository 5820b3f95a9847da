package export

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

func sampleInput() Input {
	return Input{
		ProjectID:   "proj-1",
		ProjectName: "My Project",
		Timeline: timeline.Data{
			Version:   timeline.DocumentVersion,
			ProjectID: "proj-1",
			Clips: []timeline.Clip{
				{ID: "c1", SourceVideoID: "vid1", SourceFilename: "intro.mp4", InPoint: 0, OutPoint: 4, Position: 0, Speed: 1.0, Label: "A (L)"},
				{ID: "c2", SourceVideoID: "vid1", SourceFilename: "intro.mp4", InPoint: 4, OutPoint: 10, Position: 1, Speed: 1.0, Label: "A (R)"},
			},
			Transitions: []timeline.Transition{},
			Markers: []timeline.Marker{
				{ID: "m1", Position: 2, Label: "AI cut", Color: "#ef4444", Type: timeline.MarkerAISuggestion},
			},
			Duration: 10,
			Settings: timeline.Settings{FPS: 30, Width: 1920, Height: 1080},
		},
		Media: []SourceMedia{
			{ID: "vid1", Filename: "intro.mp4", Path: "/media/intro.mp4", Duration: 30, Width: 1920, Height: 1080, FrameRate: 30, HasAudio: true},
		},
		Suggestions: SuggestionTally{Total: 3, Applied: 1, Ignored: 1, Pending: 1},
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "data json", req: Request{Kind: KindData, Data: &DataSpec{Format: FormatJSON}}},
		{name: "data xml", req: Request{Kind: KindData, Data: &DataSpec{Format: FormatXML}}},
		{name: "data edl", req: Request{Kind: KindData, Data: &DataSpec{Format: FormatEDL}}},
		{name: "report", req: Request{Kind: KindReport, Report: &ReportSpec{}}},
		{name: "video", req: Request{Kind: KindVideo, Video: &VideoSpec{}}},
		{name: "data without payload", req: Request{Kind: KindData}, wantErr: true},
		{name: "data with extra payload", req: Request{Kind: KindData, Data: &DataSpec{Format: FormatJSON}, Report: &ReportSpec{}}, wantErr: true},
		{name: "unknown data format", req: Request{Kind: KindData, Data: &DataSpec{Format: "csv"}}, wantErr: true},
		{name: "report without payload", req: Request{Kind: KindReport}, wantErr: true},
		{name: "video without payload", req: Request{Kind: KindVideo}, wantErr: true},
		{name: "video with data payload", req: Request{Kind: KindVideo, Video: &VideoSpec{}, Data: &DataSpec{Format: FormatJSON}}, wantErr: true},
		{name: "unknown kind", req: Request{Kind: "pdf"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuild_DataJSON(t *testing.T) {
	art, err := Build(Request{Kind: KindData, Data: &DataSpec{Format: FormatJSON}}, sampleInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if art.Filename != "My Project.json" {
		t.Fatalf("filename = %q, want %q", art.Filename, "My Project.json")
	}
	if art.ContentType != "application/json" {
		t.Fatalf("content type = %q", art.ContentType)
	}

	var doc DataDocument
	if err := json.Unmarshal(art.Bytes, &doc); err != nil {
		t.Fatalf("unmarshal artifact: %v", err)
	}
	if doc.Generator != "cutbench-agent" {
		t.Errorf("generator = %q", doc.Generator)
	}
	if doc.ExportedAt == "" {
		t.Error("missing exportedAt")
	}
	if len(doc.Timeline.Clips) != 2 {
		t.Errorf("clip count = %d, want 2", len(doc.Timeline.Clips))
	}
	if len(doc.Media) != 1 {
		t.Errorf("media count = %d, want 1", len(doc.Media))
	}
	if doc.Summary.KeptTime != 10 {
		t.Errorf("keptTime = %v, want 10", doc.Summary.KeptTime)
	}
	if doc.Summary.CutTime != 20 {
		t.Errorf("cutTime = %v, want 20", doc.Summary.CutTime)
	}
}

func TestBuild_DataEDL(t *testing.T) {
	art, err := Build(Request{Kind: KindData, Data: &DataSpec{Format: FormatEDL}}, sampleInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if art.Filename != "My Project.edl" {
		t.Fatalf("filename = %q", art.Filename)
	}
	if !strings.HasPrefix(string(art.Bytes), "TITLE: My Project") {
		t.Fatalf("artifact does not start with an EDL title: %q", string(art.Bytes[:40]))
	}
}

func TestBuild_DataFCPXML(t *testing.T) {
	art, err := Build(Request{Kind: KindData, Data: &DataSpec{Format: FormatXML}}, sampleInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if art.Filename != "My Project.fcpxml" {
		t.Fatalf("filename = %q", art.Filename)
	}

	body := string(art.Bytes)
	if !strings.Contains(body, "<!DOCTYPE fcpxml>") {
		t.Fatal("missing DOCTYPE declaration")
	}

	var doc fcpxmlDoc
	if err := xml.Unmarshal(art.Bytes, &doc); err != nil {
		t.Fatalf("unmarshal fcpxml: %v", err)
	}
	if doc.Version != "1.9" {
		t.Errorf("version = %q, want 1.9", doc.Version)
	}
	if len(doc.Resources.Assets) != 1 {
		t.Fatalf("asset count = %d, want 1", len(doc.Resources.Assets))
	}
	if doc.Resources.Assets[0].Src != "file:///media/intro.mp4" {
		t.Errorf("asset src = %q", doc.Resources.Assets[0].Src)
	}
	if doc.Resources.Assets[0].HasAudio != 1 {
		t.Errorf("hasAudio = %d, want 1", doc.Resources.Assets[0].HasAudio)
	}

	spine := doc.Library.Event.Project.Sequence.Spine
	if len(spine.Clips) != 2 {
		t.Fatalf("spine clip count = %d, want 2", len(spine.Clips))
	}
	if spine.Clips[0].Offset != "0/30s" {
		t.Errorf("first clip offset = %q, want 0/30s", spine.Clips[0].Offset)
	}
	if spine.Clips[1].Offset != "120/30s" {
		t.Errorf("second clip offset = %q, want 120/30s", spine.Clips[1].Offset)
	}
	if spine.Clips[1].Start != "120/30s" {
		t.Errorf("second clip start = %q, want 120/30s", spine.Clips[1].Start)
	}
	if spine.Clips[1].Duration != "180/30s" {
		t.Errorf("second clip duration = %q, want 180/30s", spine.Clips[1].Duration)
	}
}

func TestGenerateFCPXML_UnknownSourceVideo(t *testing.T) {
	in := sampleInput()
	in.Timeline.Clips[0].SourceVideoID = "vid-missing"

	if _, err := GenerateFCPXML(in); err == nil {
		t.Fatal("expected error for clip referencing unknown source video")
	}
}

func TestBuild_Report(t *testing.T) {
	art, err := Build(Request{
		Kind:   KindReport,
		Report: &ReportSpec{AcceptedSuggestionIDs: []string{"s1"}},
	}, sampleInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if art.Filename != "My Project-report.json" {
		t.Fatalf("filename = %q", art.Filename)
	}

	var rep Report
	if err := json.Unmarshal(art.Bytes, &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if rep.Suggestions.Total != 3 || rep.Suggestions.Applied != 1 {
		t.Errorf("tally = %+v", rep.Suggestions.SuggestionTally)
	}
	if len(rep.Suggestions.Accepted) != 1 || rep.Suggestions.Accepted[0] != "s1" {
		t.Errorf("accepted = %v, want [s1]", rep.Suggestions.Accepted)
	}
	if rep.Timeline.ClipCount != 2 {
		t.Errorf("clipCount = %d, want 2", rep.Timeline.ClipCount)
	}
	if len(rep.Media) != 1 {
		t.Errorf("media count = %d, want 1", len(rep.Media))
	}
}

func TestBuild_RenderManifest(t *testing.T) {
	art, err := Build(Request{Kind: KindVideo, Video: &VideoSpec{Resolution: "1080p"}}, sampleInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if art.Filename != "My Project-render.json" {
		t.Fatalf("filename = %q", art.Filename)
	}

	var manifest RenderManifest
	if err := json.Unmarshal(art.Bytes, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.Settings.Resolution != "1080p" {
		t.Errorf("resolution = %q, want 1080p", manifest.Settings.Resolution)
	}
	if manifest.Settings.Container != "mp4" {
		t.Errorf("container default = %q, want mp4", manifest.Settings.Container)
	}
	if manifest.Settings.Quality != "standard" {
		t.Errorf("quality default = %q, want standard", manifest.Settings.Quality)
	}
	if !strings.HasPrefix(manifest.EDL, "TITLE: My Project") {
		t.Error("manifest EDL missing title")
	}
	if len(manifest.Sources) != 1 {
		t.Errorf("source count = %d, want 1", len(manifest.Sources))
	}
}

func TestBuild_RejectsInvalidRequest(t *testing.T) {
	if _, err := Build(Request{Kind: "pdf"}, sampleInput()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := Build(Request{Kind: KindData}, sampleInput()); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestBuild_EmptyProjectNameFallsBack(t *testing.T) {
	in := sampleInput()
	in.ProjectName = ""

	art, err := Build(Request{Kind: KindData, Data: &DataSpec{Format: FormatJSON}}, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if art.Filename != "timeline.json" {
		t.Fatalf("filename = %q, want timeline.json", art.Filename)
	}
}

func TestSummarize_EmptyTimeline(t *testing.T) {
	in := Input{Timeline: timeline.Data{}}
	s := summarize(in)
	if s.ClipCount != 0 || s.KeptTime != 0 || s.CutTime != 0 {
		t.Fatalf("summary = %+v, want zeroes", s)
	}
}
