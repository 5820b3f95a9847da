package overlay

import (
	"errors"
	"testing"
)

// readyCompositor returns a compositor with a 16:9 source fitted into a
// 1600x900 container, so the video rect fills the container exactly.
func readyCompositor(t *testing.T) *Compositor {
	t.Helper()
	c := NewCompositor()
	if _, err := c.SetContainerSize(1600, 900); err != nil {
		t.Fatalf("SetContainerSize: %v", err)
	}
	if _, err := c.SetSourceSize(1920, 1080); err != nil {
		t.Fatalf("SetSourceSize: %v", err)
	}
	return c
}

func TestVideoRect_ContainFit(t *testing.T) {
	tests := []struct {
		name       string
		containerW float64
		containerH float64
		sourceW    float64
		sourceH    float64
		want       Rect
	}{
		{
			name:       "wider container pillarboxes",
			containerW: 2000, containerH: 900,
			sourceW: 1920, sourceH: 1080,
			want: Rect{Width: 1600, Height: 900, Left: 200, Top: 0},
		},
		{
			name:       "taller container letterboxes",
			containerW: 1600, containerH: 1200,
			sourceW: 1920, sourceH: 1080,
			want: Rect{Width: 1600, Height: 900, Left: 0, Top: 150},
		},
		{
			name:       "matching aspect fills container",
			containerW: 1600, containerH: 900,
			sourceW: 1920, sourceH: 1080,
			want: Rect{Width: 1600, Height: 900, Left: 0, Top: 0},
		},
		{
			name:       "portrait source in landscape container",
			containerW: 1600, containerH: 900,
			sourceW: 1080, sourceH: 1920,
			want: Rect{Width: 506.25, Height: 900, Left: 546.875, Top: 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCompositor()
			if _, err := c.SetContainerSize(tc.containerW, tc.containerH); err != nil {
				t.Fatalf("SetContainerSize: %v", err)
			}
			got, err := c.SetSourceSize(tc.sourceW, tc.sourceH)
			if err != nil {
				t.Fatalf("SetSourceSize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("rect = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestVideoRect_ZeroDimensionsKeepPreviousRect(t *testing.T) {
	c := readyCompositor(t)
	before := c.VideoRect()

	if _, err := c.SetContainerSize(0, 900); !errors.Is(err, ErrZeroDimensions) {
		t.Fatalf("expected ErrZeroDimensions, got %v", err)
	}
	if _, err := c.SetSourceSize(1920, -1); !errors.Is(err, ErrZeroDimensions) {
		t.Fatalf("expected ErrZeroDimensions, got %v", err)
	}
	if got := c.VideoRect(); got != before {
		t.Fatalf("rect changed on rejected input: %+v, want %+v", got, before)
	}
}

func TestVideoRect_NotEstablishedUntilBothKnown(t *testing.T) {
	c := NewCompositor()
	if _, err := c.SetContainerSize(1600, 900); err != nil {
		t.Fatalf("SetContainerSize: %v", err)
	}
	if got := c.VideoRect(); got != (Rect{}) {
		t.Fatalf("rect established before source metadata: %+v", got)
	}
}

func TestAddItem_Validation(t *testing.T) {
	c := readyCompositor(t)

	if _, err := c.AddItem(ItemInput{Kind: "sticker", Start: 0, End: 1}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := c.AddItem(ItemInput{Kind: KindText, Start: 5, End: 5}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := c.AddItem(ItemInput{Kind: KindText, Start: -1, End: 5}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	item, err := c.AddItem(ItemInput{Kind: KindText, Text: "hello", Start: 0, End: 4})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.Position != (Position{X: 50, Y: 50}) {
		t.Fatalf("default position = %+v, want centered", item.Position)
	}
	if item.ID == "" {
		t.Fatal("item id not assigned")
	}
}

func TestUpdateItem(t *testing.T) {
	c := readyCompositor(t)
	item, err := c.AddItem(ItemInput{Kind: KindText, Text: "a", Start: 0, End: 4})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	text := "b"
	end := 9.0
	got, err := c.UpdateItem(item.ID, ItemPatch{Text: &text, End: &end})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Text != "b" || got.End != 9 || got.Start != 0 {
		t.Fatalf("patched item = %+v", got)
	}

	badStart := 9.0
	if _, err := c.UpdateItem(item.ID, ItemPatch{Start: &badStart}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := c.UpdateItem("ghost", ItemPatch{}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestActiveCaption_FirstMatchWins(t *testing.T) {
	c := readyCompositor(t)

	first, err := c.AddItem(ItemInput{Kind: KindCaption, Text: "first", Start: 2, End: 8})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := c.AddItem(ItemInput{Kind: KindCaption, Text: "second", Start: 4, End: 10}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got, ok := c.ActiveCaption(5)
	if !ok {
		t.Fatal("expected an active caption at t=5")
	}
	if got.ID != first.ID {
		t.Fatalf("active caption = %q, want first match %q", got.Text, first.Text)
	}
}

func TestActiveCaption_WindowBoundaries(t *testing.T) {
	c := readyCompositor(t)
	if _, err := c.AddItem(ItemInput{Kind: KindCaption, Text: "Hi", Start: 5, End: 8}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	tests := []struct {
		playhead float64
		active   bool
	}{
		{playhead: 6, active: true},
		{playhead: 5, active: true},
		{playhead: 8, active: true},
		{playhead: 9, active: false},
		{playhead: 4.9, active: false},
	}
	for _, tc := range tests {
		if _, ok := c.ActiveCaption(tc.playhead); ok != tc.active {
			t.Fatalf("at playhead %v active = %v, want %v", tc.playhead, ok, tc.active)
		}
	}
}

func TestActiveTexts_AllMatchesRender(t *testing.T) {
	c := readyCompositor(t)

	for _, text := range []string{"a", "b", "c"} {
		if _, err := c.AddItem(ItemInput{Kind: KindText, Text: text, Start: 0, End: 10}); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}
	if _, err := c.AddItem(ItemInput{Kind: KindText, Text: "later", Start: 20, End: 30}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	active := c.ActiveTexts(5)
	if len(active) != 3 {
		t.Fatalf("active texts = %d, want 3", len(active))
	}
}

func TestPlacements_MapThroughVideoRect(t *testing.T) {
	c := NewCompositor()
	// 1920x1080 source in a 2000x900 container: rect {1600x900, left 200}.
	if _, err := c.SetContainerSize(2000, 900); err != nil {
		t.Fatalf("SetContainerSize: %v", err)
	}
	if _, err := c.SetSourceSize(1920, 1080); err != nil {
		t.Fatalf("SetSourceSize: %v", err)
	}

	pos := Position{X: 50, Y: 90}
	if _, err := c.AddItem(ItemInput{Kind: KindCaption, Text: "Hi", Start: 0, End: 10, Position: &pos}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	placements := c.Placements(5)
	if len(placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(placements))
	}
	// X: 200 + 50% of 1600 = 1000. Percentages resolve against the rect,
	// not the container (that would give 1000 only by luck; Y differs).
	if placements[0].X != 1000 {
		t.Fatalf("x = %v, want 1000", placements[0].X)
	}
	if placements[0].Y != 810 {
		t.Fatalf("y = %v, want 810", placements[0].Y)
	}
}

func TestPlacements_ClipOutsideRect(t *testing.T) {
	c := readyCompositor(t)

	outside := Position{X: 120, Y: 50}
	if _, err := c.AddItem(ItemInput{Kind: KindText, Text: "off", Start: 0, End: 10, Position: &outside}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if got := c.Placements(5); len(got) != 0 {
		t.Fatalf("anchor outside the rect must be clipped, got %+v", got)
	}
}

func TestPlacements_NoViewportNoPlacement(t *testing.T) {
	c := NewCompositor()
	if _, err := c.AddItem(ItemInput{Kind: KindText, Text: "x", Start: 0, End: 10}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := c.Placements(5); got != nil {
		t.Fatalf("placements without a rect = %+v, want none", got)
	}
}

func TestReplaceCaptions(t *testing.T) {
	c := readyCompositor(t)
	if _, err := c.AddItem(ItemInput{Kind: KindCaption, Text: "old", Start: 0, End: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	items, err := c.ReplaceCaptions([]CaptionInput{
		{Start: 0, End: 2, Text: "one"},
		{Start: 2, End: 4, Text: "two"},
	})
	if err != nil {
		t.Fatalf("ReplaceCaptions: %v", err)
	}
	if len(items) != 2 || items[0].Text != "one" || items[1].Text != "two" {
		t.Fatalf("replaced captions = %+v", items)
	}

	captions, _ := c.Items()
	if len(captions) != 2 {
		t.Fatalf("caption track = %d cues, want 2 (old track replaced)", len(captions))
	}

	if _, err := c.ReplaceCaptions([]CaptionInput{{Start: 4, End: 2}}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestLoad_RoutesByKind(t *testing.T) {
	c := NewCompositor()

	err := c.Load([]Item{
		{ID: "c1", Kind: KindCaption, Text: "cap", Start: 0, End: 2, Position: Position{X: 50, Y: 85}},
		{ID: "t1", Kind: KindText, Text: "txt", Start: 1, End: 3, Position: Position{X: 50, Y: 50}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	captions, texts := c.Items()
	if len(captions) != 1 || captions[0].ID != "c1" {
		t.Fatalf("captions = %+v", captions)
	}
	if len(texts) != 1 || texts[0].ID != "t1" {
		t.Fatalf("texts = %+v", texts)
	}

	if err := c.Load([]Item{{ID: "x", Kind: "sticker", Start: 0, End: 1}}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
