// Package overlay places captions and free-text items over the rendered
// video. All geometry is expressed relative to the video rect, the area the
// video actually occupies inside its container under a "contain" fit, so
// overlay positions survive container resizes and aspect mismatches.
package overlay

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Overlay item kinds. Captions form a single exclusive track; text items
// render independently.
const (
	KindCaption = "caption"
	KindText    = "text"
)

// DragPadding is the percent margin kept around dragged items so text stays
// visibly inside the frame.
const DragPadding = 5.0

var (
	ErrZeroDimensions = errors.New("overlay: zero or negative dimensions")
	ErrNoViewport     = errors.New("overlay: video rect not established")
	ErrInvalidRange   = errors.New("overlay: start must be before end")
	ErrUnknownKind    = errors.New("overlay: unknown item kind")
	ErrItemNotFound   = errors.New("overlay: item not found")
	ErrDragActive     = errors.New("overlay: another drag is in progress")
	ErrNoDrag         = errors.New("overlay: no drag in progress")
)

// Rect is the video's rendered area inside the container, in pixels.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Position is an overlay anchor in percent of the video rect, not of the
// container.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style carries the text rendering attributes the editor exposes.
type Style struct {
	FontFamily      string `json:"fontFamily,omitempty"`
	FontSize        int    `json:"fontSize,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	FontStyle       string `json:"fontStyle,omitempty"`
}

// Item is one caption or free-text overlay. Start and End are timeline
// seconds; overlay items are timeline-relative and unaffected by clip edits.
type Item struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Text     string   `json:"text"`
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Position Position `json:"position"`
	Style    Style    `json:"style"`
}

// Placement is an active item resolved to container pixel coordinates.
type Placement struct {
	Item Item    `json:"item"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Compositor owns the video rect and the overlay items of one editing
// session. All access is serialized through one mutex; resize and metadata
// callbacks re-enter through the Set methods.
type Compositor struct {
	mu         sync.Mutex
	containerW float64
	containerH float64
	sourceW    float64
	sourceH    float64
	rect       Rect

	captions []Item
	texts    []Item

	drag *DragSession
}

// NewCompositor returns an empty compositor with no viewport established.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// SetContainerSize records the container dimensions and recomputes the video
// rect. Zero or negative dimensions are rejected and the previous rect is
// kept, so a transient layout collapse never produces a degenerate rect.
func (c *Compositor) SetContainerSize(w, h float64) (Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w <= 0 || h <= 0 {
		return c.rect, ErrZeroDimensions
	}
	c.containerW, c.containerH = w, h
	c.recompute()
	return c.rect, nil
}

// SetSourceSize records the video's intrinsic dimensions (known once media
// metadata loads) and recomputes the video rect. Zero or negative dimensions
// are rejected, keeping the previous rect.
func (c *Compositor) SetSourceSize(w, h float64) (Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w <= 0 || h <= 0 {
		return c.rect, ErrZeroDimensions
	}
	c.sourceW, c.sourceH = w, h
	c.recompute()
	return c.rect, nil
}

// recompute derives the contain-fit rect: a relatively wider container pins
// the video to the container height (pillarbox), otherwise to the width
// (letterbox); either way the rect is centered. Callers hold c.mu.
func (c *Compositor) recompute() {
	if c.containerW <= 0 || c.containerH <= 0 || c.sourceW <= 0 || c.sourceH <= 0 {
		return
	}

	containerAspect := c.containerW / c.containerH
	sourceAspect := c.sourceW / c.sourceH

	var r Rect
	if containerAspect > sourceAspect {
		r.Height = c.containerH
		r.Width = c.containerH * sourceAspect
		r.Left = (c.containerW - r.Width) / 2
		r.Top = 0
	} else {
		r.Width = c.containerW
		r.Height = c.containerW / sourceAspect
		r.Left = 0
		r.Top = (c.containerH - r.Height) / 2
	}
	c.rect = r
}

// VideoRect returns the current video rect. It is zero until both container
// and source dimensions are known.
func (c *Compositor) VideoRect() Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rect
}

// ItemInput carries caller-supplied fields for a new overlay item. A nil
// Position centers the item.
type ItemInput struct {
	Kind     string
	Text     string
	Start    float64
	End      float64
	Position *Position
	Style    Style
}

// AddItem appends an overlay item to its track.
func (c *Compositor) AddItem(in ItemInput) (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.Kind != KindCaption && in.Kind != KindText {
		return Item{}, ErrUnknownKind
	}
	if in.Start < 0 || in.Start >= in.End {
		return Item{}, ErrInvalidRange
	}

	pos := Position{X: 50, Y: 50}
	if in.Position != nil {
		pos = *in.Position
	}

	item := Item{
		ID:       uuid.NewString(),
		Kind:     in.Kind,
		Text:     in.Text,
		Start:    in.Start,
		End:      in.End,
		Position: pos,
		Style:    in.Style,
	}

	switch in.Kind {
	case KindCaption:
		c.captions = append(c.captions, item)
	case KindText:
		c.texts = append(c.texts, item)
	}
	return item, nil
}

// ItemPatch updates individual item fields; nil fields are left unchanged.
type ItemPatch struct {
	Text     *string
	Start    *float64
	End      *float64
	Position *Position
	Style    *Style
}

// UpdateItem applies a patch to one item, enforcing the start/end invariant
// on the combined result.
func (c *Compositor) UpdateItem(id string, patch ItemPatch) (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.find(id)
	if item == nil {
		return Item{}, ErrItemNotFound
	}

	start, end := item.Start, item.End
	if patch.Start != nil {
		start = *patch.Start
	}
	if patch.End != nil {
		end = *patch.End
	}
	if start < 0 || start >= end {
		return Item{}, ErrInvalidRange
	}

	item.Start, item.End = start, end
	if patch.Text != nil {
		item.Text = *patch.Text
	}
	if patch.Position != nil {
		item.Position = *patch.Position
	}
	if patch.Style != nil {
		item.Style = *patch.Style
	}
	return *item, nil
}

// RemoveItem deletes an item from its track. A drag in progress on the item
// is released.
func (c *Compositor) RemoveItem(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.captions {
		if c.captions[i].ID == id {
			c.captions = append(c.captions[:i], c.captions[i+1:]...)
			c.releaseDrag(id)
			return nil
		}
	}
	for i := range c.texts {
		if c.texts[i].ID == id {
			c.texts = append(c.texts[:i], c.texts[i+1:]...)
			c.releaseDrag(id)
			return nil
		}
	}
	return ErrItemNotFound
}

// find returns a pointer into the item's backing slice, or nil. Callers
// hold c.mu.
func (c *Compositor) find(id string) *Item {
	for i := range c.captions {
		if c.captions[i].ID == id {
			return &c.captions[i]
		}
	}
	for i := range c.texts {
		if c.texts[i].ID == id {
			return &c.texts[i]
		}
	}
	return nil
}

// Items returns copies of both tracks in array order.
func (c *Compositor) Items() (captions, texts []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.captions...), append([]Item(nil), c.texts...)
}

// CaptionInput is one generated caption cue.
type CaptionInput struct {
	Start float64
	End   float64
	Text  string
}

// ReplaceCaptions swaps in a freshly generated caption track, preserving cue
// order. Cues with inverted ranges are rejected wholesale.
func (c *Compositor) ReplaceCaptions(cues []CaptionInput) ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, 0, len(cues))
	for _, cue := range cues {
		if cue.Start < 0 || cue.Start >= cue.End {
			return nil, ErrInvalidRange
		}
		items = append(items, Item{
			ID:       uuid.NewString(),
			Kind:     KindCaption,
			Text:     cue.Text,
			Start:    cue.Start,
			End:      cue.End,
			Position: Position{X: 50, Y: 85},
		})
	}

	c.captions = items
	c.releaseDragIfMissing()
	return append([]Item(nil), items...), nil
}

// Load replaces both tracks from persisted items, routing each item to its
// track by kind.
func (c *Compositor) Load(items []Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var captions, texts []Item
	for _, item := range items {
		if item.Start < 0 || item.Start >= item.End {
			return ErrInvalidRange
		}
		switch item.Kind {
		case KindCaption:
			captions = append(captions, item)
		case KindText:
			texts = append(texts, item)
		default:
			return ErrUnknownKind
		}
	}

	c.captions = captions
	c.texts = texts
	c.releaseDragIfMissing()
	return nil
}

// ActiveCaption returns the caption active at playhead t. With overlapping
// cues only the first match in array order wins; the caption track is
// exclusive.
func (c *Compositor) ActiveCaption(t float64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.captions {
		if item.Start <= t && t <= item.End {
			return item, true
		}
	}
	return Item{}, false
}

// ActiveTexts returns every free-text item active at playhead t, in array
// order.
func (c *Compositor) ActiveTexts(t float64) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	var active []Item
	for _, item := range c.texts {
		if item.Start <= t && t <= item.End {
			active = append(active, item)
		}
	}
	return active
}

// Placements resolves the items active at playhead t to container pixel
// coordinates: the exclusive caption first, then all active text items.
// Anchors falling outside the video rect are clipped, and nothing is placed
// until a video rect is established.
func (c *Compositor) Placements(t float64) []Placement {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rect.Width <= 0 || c.rect.Height <= 0 {
		return nil
	}

	var out []Placement
	for _, item := range c.captions {
		if item.Start <= t && t <= item.End {
			if p, ok := c.place(item); ok {
				out = append(out, p)
			}
			break
		}
	}
	for _, item := range c.texts {
		if item.Start <= t && t <= item.End {
			if p, ok := c.place(item); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// place maps an item's percent position through the video rect. Callers
// hold c.mu.
func (c *Compositor) place(item Item) (Placement, bool) {
	if item.Position.X < 0 || item.Position.X > 100 || item.Position.Y < 0 || item.Position.Y > 100 {
		return Placement{}, false
	}
	return Placement{
		Item: item,
		X:    c.rect.Left + item.Position.X/100*c.rect.Width,
		Y:    c.rect.Top + item.Position.Y/100*c.rect.Height,
	}, true
}

// ToPixels maps a percent position through the current video rect.
func (c *Compositor) ToPixels(p Position) (x, y float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rect.Width <= 0 || c.rect.Height <= 0 {
		return 0, 0, ErrNoViewport
	}
	return c.rect.Left + p.X/100*c.rect.Width, c.rect.Top + p.Y/100*c.rect.Height, nil
}
