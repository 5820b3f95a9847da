package timeline

import (
	"sync"
	"time"
)

// Event is published to subscribers after every successful mutation. Data
// is a deep copy of the post-command document.
type Event struct {
	Op   string
	Data Data
}

// Store serializes all timeline mutation through one mutex so that no
// command ever observes a partially applied prior command. Asynchronous
// inputs (playback ticks, viewport callbacks, API handlers) all re-enter
// through these methods.
type Store struct {
	mu             sync.Mutex
	data           Data
	selectedClipID string

	subs    map[int]func(Event)
	nextSub int
}

// NewStore creates a store holding an empty document for the project.
func NewStore(projectID string, settings Settings) *Store {
	return &Store{
		data: NewData(projectID, settings),
		subs: make(map[int]func(Event)),
	}
}

// Subscribe registers a callback invoked after every successful mutation,
// in command order. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify runs under the store lock so subscribers see events in the exact
// order commands were applied.
func (s *Store) notify(op string) {
	if len(s.subs) == 0 {
		return
	}
	evt := Event{Op: op, Data: s.data.Clone()}
	for _, fn := range s.subs {
		fn(evt)
	}
}

// touch stamps the document after a successful mutation.
func (s *Store) touch() {
	s.data.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Duration returns the derived timeline duration.
func (s *Store) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Duration
}

// SelectedClipID returns the currently selected clip id, or "".
func (s *Store) SelectedClipID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedClipID
}

// ClipInput carries the caller-supplied fields for a new clip. ID and
// Position are assigned by the store; Speed zero means 1.0.
type ClipInput struct {
	SourceVideoID  string
	SourceFilename string
	InPoint        float64
	OutPoint       float64
	Speed          float64
	Label          string
}

// AddClip appends a clip at the next position. The new clip is the last
// element of the returned document's clip list.
func (s *Store) AddClip(in ClipInput) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.InPoint < 0 {
		return Data{}, rejectf(OpAddClip, ReasonNegativeInPoint, "in point %.3f", in.InPoint)
	}
	if in.InPoint >= in.OutPoint {
		return Data{}, rejectf(OpAddClip, ReasonInvertedRange, "in point %.3f >= out point %.3f", in.InPoint, in.OutPoint)
	}

	speed := in.Speed
	if speed == 0 {
		speed = 1.0
	}

	clip := Clip{
		ID:             newID(),
		SourceVideoID:  in.SourceVideoID,
		SourceFilename: in.SourceFilename,
		InPoint:        in.InPoint,
		OutPoint:       in.OutPoint,
		Position:       len(s.data.Clips),
		Speed:          ClampSpeed(speed),
		Label:          in.Label,
	}

	s.data.Clips = append(s.data.Clips, clip)
	s.data.recomputeDuration()
	s.touch()
	s.notify(OpAddClip)
	return s.data.Clone(), nil
}

// ClipPatch updates individual clip fields; nil fields are left unchanged.
type ClipPatch struct {
	InPoint  *float64
	OutPoint *float64
	Label    *string
}

// UpdateClip applies a patch to one clip, enforcing the in/out invariant on
// the combined result.
func (s *Store) UpdateClip(id string, patch ClipPatch) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpUpdateClip, ReasonClipNotFound, "clip %s", id)
	}

	in := s.data.Clips[i].InPoint
	out := s.data.Clips[i].OutPoint
	if patch.InPoint != nil {
		in = *patch.InPoint
	}
	if patch.OutPoint != nil {
		out = *patch.OutPoint
	}
	if in < 0 {
		return Data{}, rejectf(OpUpdateClip, ReasonNegativeInPoint, "in point %.3f", in)
	}
	if in >= out {
		return Data{}, rejectf(OpUpdateClip, ReasonInvertedRange, "in point %.3f >= out point %.3f", in, out)
	}

	s.data.Clips[i].InPoint = in
	s.data.Clips[i].OutPoint = out
	if patch.Label != nil {
		s.data.Clips[i].Label = *patch.Label
	}

	s.data.recomputeDuration()
	s.touch()
	s.notify(OpUpdateClip)
	return s.data.Clone(), nil
}

// RemoveClip deletes a clip, its transitions, reindexes the remaining
// positions and clears the selection when it pointed at the removed clip.
func (s *Store) RemoveClip(id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpRemoveClip, ReasonClipNotFound, "clip %s", id)
	}

	s.data.Clips = append(s.data.Clips[:i], s.data.Clips[i+1:]...)
	s.data.dropTransitionsFor(id)
	s.data.reindexPositions()
	s.data.recomputeDuration()

	if s.selectedClipID == id {
		s.selectedClipID = ""
	}

	s.touch()
	s.notify(OpRemoveClip)
	return s.data.Clone(), nil
}

// SelectClip marks a clip as the editing selection.
func (s *Store) SelectClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && s.data.clipIndex(id) < 0 {
		return rejectf(OpSelectClip, ReasonClipNotFound, "clip %s", id)
	}
	s.selectedClipID = id
	return nil
}

// SetTransition upserts the transition for a clip pair. The duration is
// clamped; cuts force duration 0. The transition id is stable across
// updates of the same pair.
func (s *Store) SetTransition(fromID, toID, ttype string, duration float64) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidTransitionType(ttype) {
		return Data{}, rejectf(OpSetTransition, ReasonUnknownType, "transition type %q", ttype)
	}
	if s.data.clipIndex(fromID) < 0 {
		return Data{}, rejectf(OpSetTransition, ReasonClipNotFound, "from clip %s", fromID)
	}
	if s.data.clipIndex(toID) < 0 {
		return Data{}, rejectf(OpSetTransition, ReasonClipNotFound, "to clip %s", toID)
	}

	duration = clampTransitionDuration(ttype, duration)

	if i := s.data.transitionIndex(fromID, toID); i >= 0 {
		s.data.Transitions[i].Type = ttype
		s.data.Transitions[i].Duration = duration
	} else {
		s.data.Transitions = append(s.data.Transitions, Transition{
			ID:         newID(),
			FromClipID: fromID,
			ToClipID:   toID,
			Type:       ttype,
			Duration:   duration,
		})
	}

	s.touch()
	s.notify(OpSetTransition)
	return s.data.Clone(), nil
}

// RemoveTransition deletes the transition for a clip pair.
func (s *Store) RemoveTransition(fromID, toID string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.transitionIndex(fromID, toID)
	if i < 0 {
		return Data{}, rejectf(OpRemoveTransition, ReasonTransitionNotFound, "pair %s -> %s", fromID, toID)
	}

	s.data.Transitions = append(s.data.Transitions[:i], s.data.Transitions[i+1:]...)
	s.touch()
	s.notify(OpRemoveTransition)
	return s.data.Clone(), nil
}

// AddMarker appends a marker. The new marker is the last element of the
// returned document's marker list.
func (s *Store) AddMarker(position float64, label, color, mtype string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidMarkerType(mtype) {
		return Data{}, rejectf(OpAddMarker, ReasonUnknownType, "marker type %q", mtype)
	}
	if position < 0 {
		return Data{}, rejectf(OpAddMarker, ReasonNegativeInPoint, "position %.3f", position)
	}

	s.data.Markers = append(s.data.Markers, Marker{
		ID:       newID(),
		Position: position,
		Label:    label,
		Color:    color,
		Type:     mtype,
	})

	s.touch()
	s.notify(OpAddMarker)
	return s.data.Clone(), nil
}

// RemoveMarker deletes a marker by id.
func (s *Store) RemoveMarker(id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Markers {
		if s.data.Markers[i].ID == id {
			s.data.Markers = append(s.data.Markers[:i], s.data.Markers[i+1:]...)
			s.touch()
			s.notify(OpRemoveMarker)
			return s.data.Clone(), nil
		}
	}
	return Data{}, rejectf(OpRemoveMarker, ReasonMarkerNotFound, "marker %s", id)
}

// Clear empties clips, transitions and markers. Duration becomes 0.
func (s *Store) Clear() Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Clips = []Clip{}
	s.data.Transitions = []Transition{}
	s.data.Markers = []Marker{}
	s.data.Duration = 0
	s.selectedClipID = ""

	s.touch()
	s.notify("clear")
	return s.data.Clone()
}

// Load validates a document and replaces the store's state with it. Invalid
// documents are rejected wholesale; the previous state stays in place.
func (s *Store) Load(doc Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := doc.Validate(); err != nil {
		return err
	}

	doc = doc.Clone()
	sortClipsByPosition(doc.Clips)
	doc.reindexPositions()
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	if doc.Clips == nil {
		doc.Clips = []Clip{}
	}
	if doc.Transitions == nil {
		doc.Transitions = []Transition{}
	}
	if doc.Markers == nil {
		doc.Markers = []Marker{}
	}

	s.data = doc
	s.selectedClipID = ""
	s.notify(OpLoad)
	return nil
}

func sortClipsByPosition(clips []Clip) {
	// Positions are a validated 0..N-1 permutation, so a direct placement
	// sort is enough.
	sorted := make([]Clip, len(clips))
	for _, c := range clips {
		sorted[c.Position] = c
	}
	copy(clips, sorted)
}
