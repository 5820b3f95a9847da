// Package session wires one open project's editing engine together: the
// timeline store, the playback clock, the overlay compositor and the
// suggestion bridge share a lifetime and publish their changes to the
// project's event room. Every REST and WebSocket mutation dispatches
// through a session, so all edits funnel into the stores' serialized
// command sets.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/overlay"
	"github.com/cutbench/cutbench-agent/internal/playback"
	"github.com/cutbench/cutbench-agent/internal/project"
	"github.com/cutbench/cutbench-agent/internal/suggest"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// Event types published to the project room.
const (
	EventTimeline    = "timeline"
	EventPlayback    = "playback"
	EventTransport   = "transport"
	EventOverlay     = "overlay"
	EventSuggestions = "suggestions"
	EventAnalysis    = "analysis"
)

// SceneMarkerColor is used for markers created from detected scene
// boundaries.
const sceneMarkerColor = "#a855f7"

// Publisher delivers an event to every client watching a project. The
// WebSocket hub implements it; tests use a recording stub.
type Publisher interface {
	Publish(projectID, eventType string, data any)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, any) {}

// transportRelay forwards clock commands to the browser's media element over
// the event channel. Play cannot fail synchronously here; autoplay
// rejections come back asynchronously as play_result messages.
type transportRelay struct {
	projectID string
	pub       Publisher
}

type transportCommand struct {
	Command string  `json:"command"`
	Time    float64 `json:"time,omitempty"`
}

func (r transportRelay) Play() error {
	r.pub.Publish(r.projectID, EventTransport, transportCommand{Command: "play"})
	return nil
}

func (r transportRelay) Pause() {
	r.pub.Publish(r.projectID, EventTransport, transportCommand{Command: "pause"})
}

func (r transportRelay) Seek(t float64) {
	r.pub.Publish(r.projectID, EventTransport, transportCommand{Command: "seek", Time: t})
}

// AnalysisState is the session's view of its inference collaborators:
// a loading flag and a retryable string error, per the editor contract.
type AnalysisState struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Session is one open project's editing engine.
type Session struct {
	projectID string

	Store       *timeline.Store
	Clock       *playback.Clock
	Compositor  *overlay.Compositor
	Suggestions *suggest.Bridge

	service   *project.Service
	repo      project.Repository
	inference inference.Client
	pub       Publisher
	logger    *slog.Logger

	unsubStore func()
	unsubClock func()

	mu       sync.Mutex
	analysis AnalysisState
}

// newSession builds and hydrates a session from persisted state.
func newSession(ctx context.Context, projectID string, service *project.Service, repo project.Repository, client inference.Client, pub Publisher, logger *slog.Logger) (*Session, error) {
	if pub == nil {
		pub = NopPublisher{}
	}

	store := timeline.NewStore(projectID, timeline.DefaultSettings())
	clock := playback.NewClock(transportRelay{projectID: projectID, pub: pub}, logger)
	comp := overlay.NewCompositor()
	bridge := suggest.NewBridge(store, logger)

	s := &Session{
		projectID:   projectID,
		Store:       store,
		Clock:       clock,
		Compositor:  comp,
		Suggestions: bridge,
		service:     service,
		repo:        repo,
		inference:   client,
		pub:         pub,
		logger:      logger,
	}

	if doc, err := service.LoadTimeline(ctx, projectID); err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	} else if doc != nil {
		if err := store.Load(*doc); err != nil {
			return nil, fmt.Errorf("restore timeline: %w", err)
		}
	}

	items, err := repo.ListOverlays(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load overlays: %w", err)
	}
	if len(items) > 0 {
		if err := comp.Load(items); err != nil {
			return nil, fmt.Errorf("restore overlays: %w", err)
		}
	}

	if raw, err := service.GetInsights(ctx, projectID); err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	} else if raw != nil {
		if err := bridge.LoadInsights(raw); err != nil {
			return nil, fmt.Errorf("restore insights: %w", err)
		}
		statuses, err := repo.GetSuggestionStatuses(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("load suggestion statuses: %w", err)
		}
		bridge.SetStatuses(toStatusMap(statuses))
	}

	clock.SetDuration(store.Duration())

	// Subscriptions attach after hydration so the restore itself is not
	// echoed back out or re-persisted.
	s.unsubStore = store.Subscribe(s.onTimelineEvent)
	s.unsubClock = clock.Subscribe(s.onClockEvent)

	return s, nil
}

// onTimelineEvent runs after every successful timeline mutation, in command
// order: the clock re-clamps against the new duration, the document is
// saved through, and the room is told.
func (s *Session) onTimelineEvent(evt timeline.Event) {
	s.Clock.SetDuration(evt.Data.Duration)

	if err := s.service.SaveTimeline(context.Background(), s.projectID, evt.Data); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist timeline", "project_id", s.projectID, "op", evt.Op, "error", err)
		}
	}

	s.pub.Publish(s.projectID, EventTimeline, evt.Data)
}

func (s *Session) onClockEvent(st playback.State) {
	s.pub.Publish(s.projectID, EventPlayback, st)
}

// Close detaches the session from its stores and flushes overlay and
// suggestion state one last time.
func (s *Session) Close() {
	if s.unsubStore != nil {
		s.unsubStore()
	}
	if s.unsubClock != nil {
		s.unsubClock()
	}
	s.persistOverlays(context.Background())
	s.persistStatuses(context.Background())
}

func (s *Session) ProjectID() string {
	return s.projectID
}

// --- overlay operations ---

// SetViewport records the player container's dimensions.
func (s *Session) SetViewport(w, h float64) (overlay.Rect, error) {
	rect, err := s.Compositor.SetContainerSize(w, h)
	if err == nil {
		s.pub.Publish(s.projectID, EventOverlay, map[string]overlay.Rect{"videoRect": rect})
	}
	return rect, err
}

// SetSourceSize records the video's intrinsic dimensions from media
// metadata.
func (s *Session) SetSourceSize(w, h float64) (overlay.Rect, error) {
	rect, err := s.Compositor.SetSourceSize(w, h)
	if err == nil {
		s.pub.Publish(s.projectID, EventOverlay, map[string]overlay.Rect{"videoRect": rect})
	}
	return rect, err
}

func (s *Session) AddOverlay(ctx context.Context, in overlay.ItemInput) (overlay.Item, error) {
	item, err := s.Compositor.AddItem(in)
	if err != nil {
		return overlay.Item{}, err
	}
	s.persistOverlays(ctx)
	s.publishOverlays()
	return item, nil
}

func (s *Session) UpdateOverlay(ctx context.Context, id string, patch overlay.ItemPatch) (overlay.Item, error) {
	item, err := s.Compositor.UpdateItem(id, patch)
	if err != nil {
		return overlay.Item{}, err
	}
	s.persistOverlays(ctx)
	s.publishOverlays()
	return item, nil
}

func (s *Session) RemoveOverlay(ctx context.Context, id string) error {
	if err := s.Compositor.RemoveItem(id); err != nil {
		return err
	}
	s.persistOverlays(ctx)
	s.publishOverlays()
	return nil
}

// BeginDrag starts an exclusive drag session on an overlay item.
func (s *Session) BeginDrag(id string, pointerX, pointerY float64) (overlay.DragSession, error) {
	return s.Compositor.BeginDrag(id, pointerX, pointerY)
}

// DragMove repositions the dragged item. Intermediate positions are
// broadcast but not persisted; persistence happens on EndDrag.
func (s *Session) DragMove(pointerX, pointerY float64) (overlay.Position, error) {
	pos, err := s.Compositor.DragMove(pointerX, pointerY)
	if err != nil {
		return overlay.Position{}, err
	}
	s.publishOverlays()
	return pos, nil
}

// EndDrag releases the drag session and persists the final position.
func (s *Session) EndDrag(ctx context.Context) (overlay.Position, bool) {
	pos, ok := s.Compositor.EndDrag()
	if ok {
		s.persistOverlays(ctx)
		s.publishOverlays()
	}
	return pos, ok
}

// ActivePlacements resolves the overlays visible at the current playhead to
// container pixel coordinates.
func (s *Session) ActivePlacements() []overlay.Placement {
	return s.Compositor.Placements(s.Clock.State().Playhead)
}

func (s *Session) persistOverlays(ctx context.Context) {
	captions, texts := s.Compositor.Items()
	items := append(captions, texts...)
	if err := s.repo.SaveOverlays(ctx, s.projectID, items); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist overlays", "project_id", s.projectID, "error", err)
		}
	}
}

func (s *Session) publishOverlays() {
	captions, texts := s.Compositor.Items()
	s.pub.Publish(s.projectID, EventOverlay, map[string][]overlay.Item{
		"captions": captions,
		"texts":    texts,
	})
}

// --- suggestion operations ---

// LoadInsights stores an analysis document and feeds it to the suggestion
// bridge. The raw bytes are persisted untouched.
func (s *Session) LoadInsights(ctx context.Context, raw []byte) error {
	if err := s.Suggestions.LoadInsights(raw); err != nil {
		return err
	}
	if err := s.service.SaveInsights(ctx, s.projectID, raw); err != nil {
		return err
	}
	s.persistStatuses(ctx)
	s.publishSuggestions()
	return nil
}

func (s *Session) ApplySuggestion(ctx context.Context, id string) (timeline.Data, error) {
	d, err := s.Suggestions.Apply(id)
	if err != nil {
		return timeline.Data{}, err
	}
	s.persistStatuses(ctx)
	s.publishSuggestions()
	return d, nil
}

func (s *Session) IgnoreSuggestion(ctx context.Context, id string) error {
	if err := s.Suggestions.Ignore(id); err != nil {
		return err
	}
	s.persistStatuses(ctx)
	s.publishSuggestions()
	return nil
}

func (s *Session) ResetSuggestion(ctx context.Context, id string) error {
	if err := s.Suggestions.Reset(id); err != nil {
		return err
	}
	s.persistStatuses(ctx)
	s.publishSuggestions()
	return nil
}

func (s *Session) persistStatuses(ctx context.Context) {
	statuses := s.Suggestions.Statuses()
	if len(statuses) == 0 {
		return
	}
	out := make(map[string]string, len(statuses))
	for id, st := range statuses {
		out[id] = string(st)
	}
	if err := s.repo.SaveSuggestionStatuses(ctx, s.projectID, out); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist suggestion statuses", "project_id", s.projectID, "error", err)
		}
	}
}

func (s *Session) publishSuggestions() {
	s.pub.Publish(s.projectID, EventSuggestions, map[string]any{
		"suggestions": s.Suggestions.Suggestions(),
		"statuses":    s.Suggestions.Statuses(),
	})
}

// --- inference collaborators ---

// Analysis returns the session's collaborator state.
func (s *Session) Analysis() AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

func (s *Session) setAnalysis(loading bool, errMsg string) {
	s.mu.Lock()
	s.analysis = AnalysisState{Loading: loading, Error: errMsg}
	state := s.analysis
	s.mu.Unlock()
	s.pub.Publish(s.projectID, EventAnalysis, state)
}

// GenerateCaptions asks the inference service to transcribe a video and
// replaces the auto-caption track with the result. Failures land in the
// analysis error field; the user can retry.
func (s *Session) GenerateCaptions(ctx context.Context, video *project.SourceVideo) ([]overlay.Item, error) {
	s.setAnalysis(true, "")

	resp, err := s.inference.GenerateCaptions(ctx, inference.CaptionRequest{
		Media: inference.MediaRef{VideoID: video.ID, Path: video.Path, Duration: video.Duration},
	})
	if err != nil {
		s.setAnalysis(false, err.Error())
		return nil, err
	}

	cues := make([]overlay.CaptionInput, 0, len(resp.Captions))
	for _, c := range resp.Captions {
		cues = append(cues, overlay.CaptionInput{Start: c.Start, End: c.End, Text: c.Text})
	}
	items, err := s.Compositor.ReplaceCaptions(cues)
	if err != nil {
		s.setAnalysis(false, err.Error())
		return nil, err
	}

	s.persistOverlays(ctx)
	s.publishOverlays()
	s.setAnalysis(false, "")
	return items, nil
}

// DetectScenes asks the inference service for scene boundaries and drops a
// scene-change marker at the start of each.
func (s *Session) DetectScenes(ctx context.Context, video *project.SourceVideo) ([]inference.Scene, error) {
	s.setAnalysis(true, "")

	resp, err := s.inference.DetectScenes(ctx, inference.SceneRequest{
		Media: inference.MediaRef{VideoID: video.ID, Path: video.Path, Duration: video.Duration},
	})
	if err != nil {
		s.setAnalysis(false, err.Error())
		return nil, err
	}

	for i, scene := range resp.Scenes {
		label := fmt.Sprintf("Scene %d", i+1)
		if _, err := s.Store.AddMarker(scene.Start, label, sceneMarkerColor, timeline.MarkerSceneChange); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping scene marker", "project_id", s.projectID, "scene", i, "error", err)
			}
		}
	}

	s.setAnalysis(false, "")
	return resp.Scenes, nil
}

// RequestAnalysis queues a background content-analysis job. The insights
// land through the manager's runner hook when the job completes.
func (s *Session) RequestAnalysis(ctx context.Context, videoID string) (*project.Job, error) {
	job, err := s.service.EnqueueAnalysis(ctx, s.projectID, videoID)
	if err != nil {
		s.setAnalysis(false, err.Error())
		return nil, err
	}
	s.setAnalysis(true, "")
	return job, nil
}

// handleInsights applies a freshly produced insights document from the job
// runner.
func (s *Session) handleInsights(raw []byte) {
	if err := s.Suggestions.LoadInsights(raw); err != nil {
		s.setAnalysis(false, err.Error())
		return
	}
	s.persistStatuses(context.Background())
	s.publishSuggestions()
	s.setAnalysis(false, "")
}

func toStatusMap(statuses map[string]string) map[string]suggest.Status {
	out := make(map[string]suggest.Status, len(statuses))
	for id, st := range statuses {
		out[id] = suggest.Status(st)
	}
	return out
}
