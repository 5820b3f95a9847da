package suggest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// Status is the editor-owned review state of one suggestion.
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusIgnored Status = "ignored"
)

var (
	ErrNoInsights        = errors.New("suggest: no insights loaded")
	ErrUnknownSuggestion = errors.New("suggest: unknown suggestion id")
)

// markerColors maps suggestion types to timeline marker colors. Unknown
// types fall back to gray.
var markerColors = map[string]string{
	SuggestionCut:        "#ef4444",
	SuggestionKeep:       "#22c55e",
	SuggestionTrim:       "#f59e0b",
	SuggestionTransition: "#3b82f6",
}

const defaultMarkerColor = "#9ca3af"

// Bridge holds one session's insights document and review statuses, and
// turns applied suggestions into timeline markers through the store.
type Bridge struct {
	mu     sync.Mutex
	raw    []byte
	doc    *Insights
	status map[string]Status

	store  *timeline.Store
	logger *slog.Logger
}

// NewBridge creates an empty bridge writing markers into store.
func NewBridge(store *timeline.Store, logger *slog.Logger) *Bridge {
	return &Bridge{
		store:  store,
		logger: logger,
		status: make(map[string]Status),
	}
}

// LoadInsights replaces the insights document. The raw bytes are kept
// byte-identical for later retrieval. Statuses of suggestion ids still
// present survive the reload; statuses of ids no longer present are
// dropped. New suggestions start pending.
func (b *Bridge) LoadInsights(raw []byte) error {
	doc, err := ParseInsights(raw)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make(map[string]Status, len(doc.Suggestions))
	for _, s := range doc.Suggestions {
		if st, ok := b.status[s.ID]; ok {
			kept[s.ID] = st
		} else {
			kept[s.ID] = StatusPending
		}
	}

	b.raw = append([]byte(nil), raw...)
	b.doc = doc
	b.status = kept

	if b.logger != nil {
		b.logger.Info("insights loaded", "suggestions", len(doc.Suggestions), "model", doc.Summary.ModelVersion)
	}
	return nil
}

// Raw returns the stored insights document bytes exactly as loaded, or nil
// when none are loaded.
func (b *Bridge) Raw() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.raw == nil {
		return nil
	}
	return append([]byte(nil), b.raw...)
}

// Suggestions returns the parsed suggestion list in document order.
func (b *Bridge) Suggestions() []Suggestion {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.doc == nil {
		return nil
	}
	return append([]Suggestion(nil), b.doc.Suggestions...)
}

// Statuses returns a copy of the review status map.
func (b *Bridge) Statuses() map[string]Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Status, len(b.status))
	for id, st := range b.status {
		out[id] = st
	}
	return out
}

// SetStatuses restores persisted review statuses for currently loaded
// suggestions. Ids not present in the document are ignored.
func (b *Bridge) SetStatuses(statuses map[string]Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, st := range statuses {
		if _, ok := b.status[id]; ok {
			b.status[id] = st
		}
	}
}

// Apply creates a timeline marker at the suggestion's start time and marks
// the suggestion applied. Applying an already-applied suggestion creates
// another marker; markers are never deduplicated by suggestion id.
func (b *Bridge) Apply(id string) (timeline.Data, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(id)
	if err != nil {
		return timeline.Data{}, err
	}

	color, ok := markerColors[s.Type]
	if !ok {
		color = defaultMarkerColor
	}
	label := fmt.Sprintf("AI %s", s.Type)

	d, err := b.store.AddMarker(s.StartTime, label, color, timeline.MarkerAISuggestion)
	if err != nil {
		return timeline.Data{}, fmt.Errorf("apply suggestion %s: %w", id, err)
	}

	b.status[id] = StatusApplied
	return d, nil
}

// Ignore marks a suggestion ignored. Markers already created by earlier
// applies are left alone.
func (b *Bridge) Ignore(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.lookup(id); err != nil {
		return err
	}
	b.status[id] = StatusIgnored
	return nil
}

// Reset returns a suggestion to pending. Markers already created by earlier
// applies are left alone.
func (b *Bridge) Reset(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.lookup(id); err != nil {
		return err
	}
	b.status[id] = StatusPending
	return nil
}

// Status returns the review status of one suggestion.
func (b *Bridge) Status(id string) (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.lookup(id); err != nil {
		return "", err
	}
	return b.status[id], nil
}

// lookup finds a suggestion by id. Callers hold b.mu.
func (b *Bridge) lookup(id string) (Suggestion, error) {
	if b.doc == nil {
		return Suggestion{}, ErrNoInsights
	}
	for _, s := range b.doc.Suggestions {
		if s.ID == id {
			return s, nil
		}
	}
	return Suggestion{}, fmt.Errorf("%w: %s", ErrUnknownSuggestion, id)
}
