package overlay

// DragSession records where a drag started so pointer movement can be
// applied as a delta to the item's initial position. Sessions are
// exclusive: one overlay at a time, released on pointer-up.
type DragSession struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	StartX  float64  `json:"startX"`
	StartY  float64  `json:"startY"`
	Initial Position `json:"initial"`
}

// BeginDrag starts a drag session for an overlay item at the given pointer
// coordinates. Fails when another drag is active, the item does not exist
// or no video rect is established yet.
func (c *Compositor) BeginDrag(id string, pointerX, pointerY float64) (DragSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag != nil {
		return DragSession{}, ErrDragActive
	}
	if c.rect.Width <= 0 || c.rect.Height <= 0 {
		return DragSession{}, ErrNoViewport
	}

	item := c.find(id)
	if item == nil {
		return DragSession{}, ErrItemNotFound
	}

	c.drag = &DragSession{
		ID:      id,
		Kind:    item.Kind,
		StartX:  pointerX,
		StartY:  pointerY,
		Initial: item.Position,
	}
	return *c.drag, nil
}

// DragMove converts pointer movement into a percent delta scaled by the
// video rect dimensions (not the container), adds it to the initial
// position and clamps the result so the item stays inside the frame. The
// clamped position is written to the item and returned.
func (c *Compositor) DragMove(pointerX, pointerY float64) (Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag == nil {
		return Position{}, ErrNoDrag
	}
	if c.rect.Width <= 0 || c.rect.Height <= 0 {
		return Position{}, ErrNoViewport
	}

	// Every mutation that can remove the dragged item releases the
	// session, so the item always exists here.
	item := c.find(c.drag.ID)

	deltaX := (pointerX - c.drag.StartX) / c.rect.Width * 100
	deltaY := (pointerY - c.drag.StartY) / c.rect.Height * 100

	item.Position = Position{
		X: clampPercent(c.drag.Initial.X + deltaX),
		Y: clampPercent(c.drag.Initial.Y + deltaY),
	}
	return item.Position, nil
}

// EndDrag releases the active drag session on pointer-up and returns the
// item's final position. Pointer-up with no active drag is a no-op.
func (c *Compositor) EndDrag() (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag == nil {
		return Position{}, false
	}

	var final Position
	if item := c.find(c.drag.ID); item != nil {
		final = item.Position
	}
	c.drag = nil
	return final, true
}

// Dragging reports the active drag session, if any.
func (c *Compositor) Dragging() (DragSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag == nil {
		return DragSession{}, false
	}
	return *c.drag, true
}

// releaseDrag drops the session when the dragged item disappears. Callers
// hold c.mu.
func (c *Compositor) releaseDrag(id string) {
	if c.drag != nil && c.drag.ID == id {
		c.drag = nil
	}
}

// releaseDragIfMissing drops the session when a track swap removed the
// dragged item out from under it. Callers hold c.mu.
func (c *Compositor) releaseDragIfMissing() {
	if c.drag != nil && c.find(c.drag.ID) == nil {
		c.drag = nil
	}
}

func clampPercent(v float64) float64 {
	if v < DragPadding {
		return DragPadding
	}
	if v > 100-DragPadding {
		return 100 - DragPadding
	}
	return v
}
