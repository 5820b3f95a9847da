// Package timeline owns the timeline document: clips, transitions and
// markers, with the derived duration and dense clip ordering enforced on
// every mutation. All writes go through the Store's command set; reads are
// deep-copied snapshots.
package timeline

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is written into every new timeline document.
const DocumentVersion = "1.0"

// Transition types.
const (
	TransitionCut           = "cut"
	TransitionCrossDissolve = "cross-dissolve"
	TransitionFadeIn        = "fade-in"
	TransitionFadeOut       = "fade-out"
	TransitionFadeInOut     = "fade-in-out"
)

// Marker types.
const (
	MarkerAudioPeak    = "audio-peak"
	MarkerSceneChange  = "scene-change"
	MarkerUser         = "user"
	MarkerAISuggestion = "ai-suggestion"
)

// Clip speed bounds. SetClipSpeed clamps into this range.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Transition duration bounds in seconds. Cut transitions always have
// duration 0.
const (
	MinTransitionDuration     = 0.1
	MaxTransitionDuration     = 5.0
	DefaultTransitionDuration = 0.5
)

// Clip is one segment of a source video placed on the timeline. InPoint and
// OutPoint are seconds relative to the source media; Position is the dense
// order index on the timeline.
type Clip struct {
	ID             string  `json:"id"`
	SourceVideoID  string  `json:"sourceVideoId"`
	SourceFilename string  `json:"sourceFilename"`
	InPoint        float64 `json:"inPoint"`
	OutPoint       float64 `json:"outPoint"`
	Position       int     `json:"position"`
	Speed          float64 `json:"speed"`
	Label          string  `json:"label"`
}

// Transition joins two adjacent clips. Exactly one transition may exist per
// (FromClipID, ToClipID) pair; setting it again updates in place.
type Transition struct {
	ID         string  `json:"id"`
	FromClipID string  `json:"fromClipId"`
	ToClipID   string  `json:"toClipId"`
	Type       string  `json:"type"`
	Duration   float64 `json:"duration"`
}

// Marker is a labeled point on the timeline not tied to any clip.
type Marker struct {
	ID       string  `json:"id"`
	Position float64 `json:"position"`
	Label    string  `json:"label"`
	Color    string  `json:"color"`
	Type     string  `json:"type"`
}

// Settings carries the project's render parameters.
type Settings struct {
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// DefaultSettings returns the render parameters new projects start with.
func DefaultSettings() Settings {
	return Settings{FPS: 30, Width: 1920, Height: 1080}
}

// Data is the persisted timeline document. Duration is derived from the
// clips and recomputed on every mutation, never stored independently.
type Data struct {
	Version     string       `json:"version"`
	ProjectID   string       `json:"projectId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Clips       []Clip       `json:"clips"`
	Transitions []Transition `json:"transitions"`
	Markers     []Marker     `json:"markers"`
	Duration    float64      `json:"duration"`
	Settings    Settings     `json:"settings"`
}

// NewData returns an empty timeline document for a project.
func NewData(projectID string, settings Settings) Data {
	now := time.Now().UTC()
	return Data{
		Version:     DocumentVersion,
		ProjectID:   projectID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Clips:       []Clip{},
		Transitions: []Transition{},
		Markers:     []Marker{},
		Settings:    settings,
	}
}

// Clone returns a deep copy of the document.
func (d Data) Clone() Data {
	out := d
	out.Clips = append([]Clip(nil), d.Clips...)
	out.Transitions = append([]Transition(nil), d.Transitions...)
	out.Markers = append([]Marker(nil), d.Markers...)
	return out
}

// recomputeDuration derives Duration as the maximum clip out point, or 0
// for an empty clip list.
func (d *Data) recomputeDuration() {
	max := 0.0
	for _, c := range d.Clips {
		if c.OutPoint > max {
			max = c.OutPoint
		}
	}
	d.Duration = max
}

// reindexPositions rewrites Position to match slice order, keeping the
// 0..N-1 permutation dense after removals and inserts.
func (d *Data) reindexPositions() {
	for i := range d.Clips {
		d.Clips[i].Position = i
	}
}

// clipIndex returns the slice index of the clip with the given id, or -1.
func (d *Data) clipIndex(id string) int {
	for i := range d.Clips {
		if d.Clips[i].ID == id {
			return i
		}
	}
	return -1
}

// transitionIndex returns the slice index of the transition for the clip
// pair, or -1.
func (d *Data) transitionIndex(fromID, toID string) int {
	for i := range d.Transitions {
		if d.Transitions[i].FromClipID == fromID && d.Transitions[i].ToClipID == toID {
			return i
		}
	}
	return -1
}

// dropTransitionsFor removes every transition referencing the clip id, so a
// clip removal can never leave a dangling reference behind.
func (d *Data) dropTransitionsFor(clipID string) {
	kept := d.Transitions[:0]
	for _, t := range d.Transitions {
		if t.FromClipID != clipID && t.ToClipID != clipID {
			kept = append(kept, t)
		}
	}
	d.Transitions = kept
}

// Validate checks every document invariant. It is applied to documents
// loaded from storage or received over the API; internal commands maintain
// these invariants by construction.
func (d Data) Validate() error {
	seen := make(map[string]bool, len(d.Clips))
	positions := make(map[int]bool, len(d.Clips))

	for _, c := range d.Clips {
		if c.ID == "" {
			return rejectf(OpLoad, ReasonInvalidDocument, "clip with empty id")
		}
		if seen[c.ID] {
			return rejectf(OpLoad, ReasonInvalidDocument, "duplicate clip id %s", c.ID)
		}
		seen[c.ID] = true

		if c.InPoint < 0 {
			return rejectf(OpLoad, ReasonInvalidDocument, "clip %s has negative in point", c.ID)
		}
		if c.InPoint >= c.OutPoint {
			return rejectf(OpLoad, ReasonInvalidDocument, "clip %s has in point %.3f >= out point %.3f", c.ID, c.InPoint, c.OutPoint)
		}
		if c.Speed < MinSpeed || c.Speed > MaxSpeed {
			return rejectf(OpLoad, ReasonInvalidDocument, "clip %s speed %.2f outside [%.2f, %.2f]", c.ID, c.Speed, MinSpeed, MaxSpeed)
		}
		if c.Position < 0 || c.Position >= len(d.Clips) {
			return rejectf(OpLoad, ReasonInvalidDocument, "clip %s position %d out of range", c.ID, c.Position)
		}
		if positions[c.Position] {
			return rejectf(OpLoad, ReasonInvalidDocument, "duplicate clip position %d", c.Position)
		}
		positions[c.Position] = true
	}

	for _, t := range d.Transitions {
		if !ValidTransitionType(t.Type) {
			return rejectf(OpLoad, ReasonInvalidDocument, "unknown transition type %q", t.Type)
		}
		if !seen[t.FromClipID] || !seen[t.ToClipID] {
			return rejectf(OpLoad, ReasonInvalidDocument, "transition %s references missing clip", t.ID)
		}
		if t.Duration < 0 || t.Duration > MaxTransitionDuration {
			return rejectf(OpLoad, ReasonInvalidDocument, "transition %s duration %.3f out of range", t.ID, t.Duration)
		}
	}

	for _, m := range d.Markers {
		if !ValidMarkerType(m.Type) {
			return rejectf(OpLoad, ReasonInvalidDocument, "unknown marker type %q", m.Type)
		}
		if m.Position < 0 {
			return rejectf(OpLoad, ReasonInvalidDocument, "marker %s has negative position", m.ID)
		}
	}

	want := maxOutPoint(d.Clips)
	if d.Duration != want {
		return rejectf(OpLoad, ReasonInvalidDocument, "stored duration %.3f does not match derived %.3f", d.Duration, want)
	}

	return nil
}

func maxOutPoint(clips []Clip) float64 {
	max := 0.0
	for _, c := range clips {
		if c.OutPoint > max {
			max = c.OutPoint
		}
	}
	return max
}

// ValidTransitionType reports whether t is one of the supported transition
// types.
func ValidTransitionType(t string) bool {
	switch t {
	case TransitionCut, TransitionCrossDissolve, TransitionFadeIn, TransitionFadeOut, TransitionFadeInOut:
		return true
	}
	return false
}

// TransitionTypes returns the supported transition type catalog.
func TransitionTypes() []string {
	return []string{
		TransitionCut,
		TransitionCrossDissolve,
		TransitionFadeIn,
		TransitionFadeOut,
		TransitionFadeInOut,
	}
}

// ValidMarkerType reports whether t is one of the supported marker types.
func ValidMarkerType(t string) bool {
	switch t {
	case MarkerAudioPeak, MarkerSceneChange, MarkerUser, MarkerAISuggestion:
		return true
	}
	return false
}

// ClampSpeed bounds a playback rate to the supported range.
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// clampTransitionDuration bounds a transition duration; cuts are always
// instantaneous.
func clampTransitionDuration(ttype string, duration float64) float64 {
	if ttype == TransitionCut {
		return 0
	}
	if duration < MinTransitionDuration {
		return MinTransitionDuration
	}
	if duration > MaxTransitionDuration {
		return MaxTransitionDuration
	}
	return duration
}

func newID() string {
	return uuid.NewString()
}

// FormatTime renders seconds as HH:MM:SS.mmm for labels and logs.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int(math.Round(seconds * 1000))
	ms := totalMs % 1000
	total := totalMs / 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
