package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cutbench/cutbench-agent/internal/db"
	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/media"
	"github.com/cutbench/cutbench-agent/internal/overlay"
	"github.com/cutbench/cutbench-agent/internal/project"
	"github.com/cutbench/cutbench-agent/internal/suggest"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

type recordedEvent struct {
	ProjectID string
	Type      string
	Data      any
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(projectID, eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{ProjectID: projectID, Type: eventType, Data: data})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fakeInference struct {
	detectScenesFn     func(ctx context.Context, req inference.SceneRequest) (*inference.SceneResponse, error)
	generateCaptionsFn func(ctx context.Context, req inference.CaptionRequest) (*inference.CaptionResponse, error)
}

func (f *fakeInference) DetectScenes(ctx context.Context, req inference.SceneRequest) (*inference.SceneResponse, error) {
	if f.detectScenesFn != nil {
		return f.detectScenesFn(ctx, req)
	}
	return &inference.SceneResponse{}, nil
}

func (f *fakeInference) GenerateCaptions(ctx context.Context, req inference.CaptionRequest) (*inference.CaptionResponse, error) {
	if f.generateCaptionsFn != nil {
		return f.generateCaptionsFn(ctx, req)
	}
	return &inference.CaptionResponse{}, nil
}

func (f *fakeInference) AnalyzeContent(ctx context.Context, req inference.AnalyzeRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"suggestions":[]}`), nil
}

func setupManager(t *testing.T, inf inference.Client) (*Manager, *project.Service, project.Repository, *recordingPublisher) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := project.NewRepository(database.Conn())
	svc := project.NewService(repo, media.NewStubProber(nil), nil)
	if inf == nil {
		inf = &fakeInference{}
	}

	pub := &recordingPublisher{}
	return NewManager(svc, repo, inf, pub, nil), svc, repo, pub
}

func openTestSession(t *testing.T, m *Manager, svc *project.Service) *Session {
	t.Helper()

	p, err := svc.CreateProject(context.Background(), "Session Test")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	s, err := m.Open(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestManager_Open_Idempotent(t *testing.T) {
	m, svc, _, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)

	again, err := m.Open(context.Background(), s.ProjectID())
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if again != s {
		t.Error("second Open() returned a different session")
	}
	if m.OpenCount() != 1 {
		t.Errorf("OpenCount() = %d, want 1", m.OpenCount())
	}
}

func TestManager_Open_MissingProject(t *testing.T) {
	m, _, _, _ := setupManager(t, nil)

	if _, err := m.Open(context.Background(), "no-such-project"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Open() error = %v, want ErrProjectNotFound", err)
	}
}

func TestSession_TimelineMutationPersistsAndPublishes(t *testing.T) {
	m, svc, _, pub := setupManager(t, nil)
	s := openTestSession(t, m, svc)
	ctx := context.Background()

	d, err := s.Store.AddClip(timeline.ClipInput{
		SourceVideoID: "v1", SourceFilename: "a.mp4", InPoint: 0, OutPoint: 10, Label: "A",
	})
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	if d.Duration != 10 {
		t.Errorf("duration = %v, want 10", d.Duration)
	}

	// The clock follows the new duration.
	if got := s.Clock.State().Duration; got != 10 {
		t.Errorf("clock duration = %v, want 10", got)
	}

	// The document was saved through to SQLite.
	saved, err := svc.LoadTimeline(ctx, s.ProjectID())
	if err != nil {
		t.Fatalf("LoadTimeline() error = %v", err)
	}
	if saved == nil || len(saved.Clips) != 1 {
		t.Fatalf("persisted document = %+v, want one clip", saved)
	}

	if pub.count(EventTimeline) == 0 {
		t.Error("no timeline event published")
	}
	if pub.count(EventPlayback) == 0 {
		t.Error("no playback event published after duration change")
	}
}

func TestSession_ReopenRestoresState(t *testing.T) {
	m, svc, _, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)
	ctx := context.Background()
	projectID := s.ProjectID()

	if _, err := s.Store.AddClip(timeline.ClipInput{SourceVideoID: "v1", SourceFilename: "a.mp4", InPoint: 0, OutPoint: 8, Label: "A"}); err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	if _, err := s.AddOverlay(ctx, overlay.ItemInput{Kind: overlay.KindText, Text: "Title", Start: 1, End: 4}); err != nil {
		t.Fatalf("AddOverlay() error = %v", err)
	}

	m.Close(projectID)

	reopened, err := m.Open(ctx, projectID)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened == s {
		t.Fatal("reopen returned the closed session")
	}

	doc := reopened.Store.Snapshot()
	if len(doc.Clips) != 1 || doc.Duration != 8 {
		t.Errorf("restored document = %d clips duration %v, want 1 clip duration 8", len(doc.Clips), doc.Duration)
	}
	_, texts := reopened.Compositor.Items()
	if len(texts) != 1 || texts[0].Text != "Title" {
		t.Errorf("restored texts = %+v, want the Title overlay", texts)
	}
	if got := reopened.Clock.State().Duration; got != 8 {
		t.Errorf("restored clock duration = %v, want 8", got)
	}
}

func TestSession_PlayheadReclampsWhenTimelineShrinks(t *testing.T) {
	m, svc, _, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)

	d, err := s.Store.AddClip(timeline.ClipInput{SourceVideoID: "v1", SourceFilename: "a.mp4", InPoint: 0, OutPoint: 20, Label: "A"})
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	clipID := d.Clips[0].ID

	s.Clock.SeekTo(18)
	if _, err := s.Store.TrimClipOut(clipID, 10); err != nil {
		t.Fatalf("TrimClipOut() error = %v", err)
	}

	st := s.Clock.State()
	if st.Duration != 10 {
		t.Errorf("duration = %v, want 10", st.Duration)
	}
	if st.Playhead != 10 {
		t.Errorf("playhead = %v, want re-clamp to 10", st.Playhead)
	}
}

func TestSession_PlayRejectionRollsBack(t *testing.T) {
	m, svc, _, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)

	if _, err := s.Store.AddClip(timeline.ClipInput{SourceVideoID: "v1", SourceFilename: "a.mp4", InPoint: 0, OutPoint: 10, Label: "A"}); err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}

	st := s.Clock.Play()
	if !st.Playing {
		t.Fatal("Play() did not enter Playing")
	}

	// The browser reports the autoplay rejection asynchronously.
	s.Clock.HandlePlayRejected("autoplay blocked")

	st = s.Clock.State()
	if st.Playing {
		t.Error("clock still playing after rejection")
	}
	if st.Playhead != 0 {
		t.Errorf("playhead = %v, want untouched 0", st.Playhead)
	}
}

func TestSession_DragPersistsOnEnd(t *testing.T) {
	m, svc, repo, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)
	ctx := context.Background()

	if _, err := s.SetViewport(1600, 900); err != nil {
		t.Fatalf("SetViewport() error = %v", err)
	}
	if _, err := s.SetSourceSize(1920, 1080); err != nil {
		t.Fatalf("SetSourceSize() error = %v", err)
	}

	item, err := s.AddOverlay(ctx, overlay.ItemInput{Kind: overlay.KindText, Text: "Drag me", Start: 0, End: 5})
	if err != nil {
		t.Fatalf("AddOverlay() error = %v", err)
	}

	if _, err := s.BeginDrag(item.ID, 800, 450); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	// Way past the right edge: the clamp holds the item at 95%.
	if _, err := s.DragMove(5000, 450); err != nil {
		t.Fatalf("DragMove() error = %v", err)
	}
	pos, ok := s.EndDrag(ctx)
	if !ok {
		t.Fatal("EndDrag() reported no active drag")
	}
	if pos.X != 95 {
		t.Errorf("final X = %v, want clamp at 95", pos.X)
	}

	saved, err := repo.ListOverlays(ctx, s.ProjectID())
	if err != nil {
		t.Fatalf("ListOverlays() error = %v", err)
	}
	if len(saved) != 1 || saved[0].Position.X != 95 {
		t.Errorf("persisted overlays = %+v, want dragged position", saved)
	}
}

func TestSession_SuggestionsPersistAcrossReopen(t *testing.T) {
	m, svc, _, _ := setupManager(t, nil)
	s := openTestSession(t, m, svc)
	ctx := context.Background()
	projectID := s.ProjectID()

	insights := []byte(`{"projectId":"p1","suggestions":[
		{"id":"s1","type":"cut","startTime":3.5,"endTime":6,"reason":"silence"},
		{"id":"s2","type":"keep","startTime":10,"endTime":20,"reason":"speech"}
	]}`)
	if err := s.LoadInsights(ctx, insights); err != nil {
		t.Fatalf("LoadInsights() error = %v", err)
	}

	if _, err := s.ApplySuggestion(ctx, "s1"); err != nil {
		t.Fatalf("ApplySuggestion() error = %v", err)
	}
	if err := s.IgnoreSuggestion(ctx, "s2"); err != nil {
		t.Fatalf("IgnoreSuggestion() error = %v", err)
	}

	doc := s.Store.Snapshot()
	if len(doc.Markers) != 1 || doc.Markers[0].Type != timeline.MarkerAISuggestion {
		t.Fatalf("markers = %+v, want one ai-suggestion marker", doc.Markers)
	}
	if doc.Markers[0].Position != 3.5 {
		t.Errorf("marker position = %v, want 3.5", doc.Markers[0].Position)
	}

	m.Close(projectID)
	reopened, err := m.Open(ctx, projectID)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}

	statuses := reopened.Suggestions.Statuses()
	if statuses["s1"] != suggest.StatusApplied {
		t.Errorf("s1 status = %s, want applied", statuses["s1"])
	}
	if statuses["s2"] != suggest.StatusIgnored {
		t.Errorf("s2 status = %s, want ignored", statuses["s2"])
	}
	if raw := reopened.Suggestions.Raw(); string(raw) != string(insights) {
		t.Error("insights bytes changed across reopen")
	}
}

func TestSession_GenerateCaptions(t *testing.T) {
	inf := &fakeInference{
		generateCaptionsFn: func(ctx context.Context, req inference.CaptionRequest) (*inference.CaptionResponse, error) {
			return &inference.CaptionResponse{Captions: []inference.Caption{
				{Start: 5, End: 8, Text: "Hi"},
				{Start: 9, End: 12, Text: "Welcome back"},
			}}, nil
		},
	}
	m, svc, _, _ := setupManager(t, inf)
	s := openTestSession(t, m, svc)

	video := &project.SourceVideo{ID: "v1", Path: "/media/a.mp4", Duration: 60}
	items, err := s.GenerateCaptions(context.Background(), video)
	if err != nil {
		t.Fatalf("GenerateCaptions() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d captions, want 2", len(items))
	}

	// Scenario: the caption is active at 6, nothing at 9 boundary+.
	if _, ok := s.Compositor.ActiveCaption(6); !ok {
		t.Error("no active caption at t=6")
	}
	if item, ok := s.Compositor.ActiveCaption(8.5); ok {
		t.Errorf("unexpected active caption %q at t=8.5", item.Text)
	}

	if st := s.Analysis(); st.Loading || st.Error != "" {
		t.Errorf("analysis state = %+v, want idle with no error", st)
	}
}

func TestSession_InferenceFailureSurfacesAsError(t *testing.T) {
	inf := &fakeInference{
		generateCaptionsFn: func(ctx context.Context, req inference.CaptionRequest) (*inference.CaptionResponse, error) {
			return nil, errors.New("service unavailable")
		},
	}
	m, svc, _, _ := setupManager(t, inf)
	s := openTestSession(t, m, svc)

	video := &project.SourceVideo{ID: "v1", Path: "/media/a.mp4", Duration: 60}
	if _, err := s.GenerateCaptions(context.Background(), video); err == nil {
		t.Fatal("GenerateCaptions() should propagate the failure")
	}

	st := s.Analysis()
	if st.Loading {
		t.Error("loading flag not cleared after failure")
	}
	if st.Error != "service unavailable" {
		t.Errorf("analysis error = %q, want the service error", st.Error)
	}
}

func TestSession_DetectScenesAddsMarkers(t *testing.T) {
	inf := &fakeInference{
		detectScenesFn: func(ctx context.Context, req inference.SceneRequest) (*inference.SceneResponse, error) {
			return &inference.SceneResponse{Scenes: []inference.Scene{
				{Start: 0, End: 12.5},
				{Start: 12.5, End: 30},
			}}, nil
		},
	}
	m, svc, _, _ := setupManager(t, inf)
	s := openTestSession(t, m, svc)

	video := &project.SourceVideo{ID: "v1", Path: "/media/a.mp4", Duration: 30}
	scenes, err := s.DetectScenes(context.Background(), video)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}

	doc := s.Store.Snapshot()
	if len(doc.Markers) != 2 {
		t.Fatalf("got %d markers, want 2", len(doc.Markers))
	}
	for _, mk := range doc.Markers {
		if mk.Type != timeline.MarkerSceneChange {
			t.Errorf("marker type = %s, want scene-change", mk.Type)
		}
	}
}

func TestManager_OnInsightsRefreshesOpenSession(t *testing.T) {
	m, svc, _, pub := setupManager(t, nil)
	s := openTestSession(t, m, svc)

	m.OnInsights(s.ProjectID(), []byte(`{"suggestions":[{"id":"s9","type":"trim","startTime":1,"endTime":2,"reason":"filler"}]}`))

	suggestions := s.Suggestions.Suggestions()
	if len(suggestions) != 1 || suggestions[0].ID != "s9" {
		t.Errorf("suggestions = %+v, want s9", suggestions)
	}
	if pub.count(EventSuggestions) == 0 {
		t.Error("no suggestions event published")
	}

	// Unknown projects are ignored.
	m.OnInsights("other-project", []byte(`{"suggestions":[]}`))
}
