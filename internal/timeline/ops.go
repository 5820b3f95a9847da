package timeline

// SplitClip cuts a clip at source time t. The original clip is replaced by
// two new clips: a left half [inPoint, t) that takes the original position
// and an " (L)" label suffix, and a right half [t, outPoint) at the next
// position with an " (R)" suffix. Both inherit source, filename and speed.
// The left half becomes the selection. t must fall strictly inside the
// clip's range.
func (s *Store) SplitClip(id string, t float64) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpSplitClip, ReasonClipNotFound, "clip %s", id)
	}

	orig := s.data.Clips[i]
	if t <= orig.InPoint || t >= orig.OutPoint {
		return Data{}, rejectf(OpSplitClip, ReasonSplitOutOfRange,
			"split time %.3f outside (%.3f, %.3f)", t, orig.InPoint, orig.OutPoint)
	}

	left := Clip{
		ID:             newID(),
		SourceVideoID:  orig.SourceVideoID,
		SourceFilename: orig.SourceFilename,
		InPoint:        orig.InPoint,
		OutPoint:       t,
		Speed:          orig.Speed,
		Label:          orig.Label + " (L)",
	}
	right := Clip{
		ID:             newID(),
		SourceVideoID:  orig.SourceVideoID,
		SourceFilename: orig.SourceFilename,
		InPoint:        t,
		OutPoint:       orig.OutPoint,
		Speed:          orig.Speed,
		Label:          orig.Label + " (R)",
	}

	// Transitions referencing the original clip no longer have a referent.
	s.data.dropTransitionsFor(id)

	clips := make([]Clip, 0, len(s.data.Clips)+1)
	clips = append(clips, s.data.Clips[:i]...)
	clips = append(clips, left, right)
	clips = append(clips, s.data.Clips[i+1:]...)
	s.data.Clips = clips

	s.data.reindexPositions()
	s.data.recomputeDuration()
	s.selectedClipID = left.ID

	s.touch()
	s.notify(OpSplitClip)
	return s.data.Clone(), nil
}

// TrimClipIn moves a clip's in point. The new in point must be non-negative
// and strictly before the out point.
func (s *Store) TrimClipIn(id string, newIn float64) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpTrimIn, ReasonClipNotFound, "clip %s", id)
	}
	if newIn < 0 {
		return Data{}, rejectf(OpTrimIn, ReasonNegativeInPoint, "in point %.3f", newIn)
	}
	if newIn >= s.data.Clips[i].OutPoint {
		return Data{}, rejectf(OpTrimIn, ReasonInvertedRange,
			"in point %.3f >= out point %.3f", newIn, s.data.Clips[i].OutPoint)
	}

	s.data.Clips[i].InPoint = newIn
	s.data.recomputeDuration()
	s.touch()
	s.notify(OpTrimIn)
	return s.data.Clone(), nil
}

// TrimClipOut moves a clip's out point. The new out point must be strictly
// after the in point.
func (s *Store) TrimClipOut(id string, newOut float64) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpTrimOut, ReasonClipNotFound, "clip %s", id)
	}
	if newOut <= s.data.Clips[i].InPoint {
		return Data{}, rejectf(OpTrimOut, ReasonInvertedRange,
			"out point %.3f <= in point %.3f", newOut, s.data.Clips[i].InPoint)
	}

	s.data.Clips[i].OutPoint = newOut
	s.data.recomputeDuration()
	s.touch()
	s.notify(OpTrimOut)
	return s.data.Clone(), nil
}

// SetClipSpeed sets a clip's playback rate, clamped to the supported range.
// In and out points are source-relative and stay untouched, so the timeline
// duration does not change with speed.
func (s *Store) SetClipSpeed(id string, speed float64) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.clipIndex(id)
	if i < 0 {
		return Data{}, rejectf(OpSetSpeed, ReasonClipNotFound, "clip %s", id)
	}

	s.data.Clips[i].Speed = ClampSpeed(speed)
	s.touch()
	s.notify(OpSetSpeed)
	return s.data.Clone(), nil
}

// ReorderClips rearranges the timeline to the given clip id order. The list
// must be an exact permutation of the current clip ids.
func (s *Store) ReorderClips(ids []string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.data.Clips) {
		return Data{}, rejectf(OpReorderClips, ReasonBadReorder,
			"got %d ids, timeline has %d clips", len(ids), len(s.data.Clips))
	}

	reordered := make([]Clip, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return Data{}, rejectf(OpReorderClips, ReasonBadReorder, "duplicate clip id %s", id)
		}
		seen[id] = true
		i := s.data.clipIndex(id)
		if i < 0 {
			return Data{}, rejectf(OpReorderClips, ReasonClipNotFound, "clip %s", id)
		}
		reordered = append(reordered, s.data.Clips[i])
	}

	s.data.Clips = reordered
	s.data.reindexPositions()
	s.touch()
	s.notify(OpReorderClips)
	return s.data.Clone(), nil
}

// AutoTransitions upserts a transition of the given type between every pair
// of adjacent clips. Non-cut transitions get the default duration, cuts get
// zero. Needs at least two clips.
func (s *Store) AutoTransitions(ttype string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidTransitionType(ttype) {
		return Data{}, rejectf(OpAutoTransitions, ReasonUnknownType, "transition type %q", ttype)
	}
	if len(s.data.Clips) < 2 {
		return Data{}, rejectf(OpAutoTransitions, ReasonNotEnoughClips,
			"timeline has %d clips", len(s.data.Clips))
	}

	duration := DefaultTransitionDuration
	if ttype == TransitionCut {
		duration = 0
	}

	for i := 0; i < len(s.data.Clips)-1; i++ {
		fromID := s.data.Clips[i].ID
		toID := s.data.Clips[i+1].ID
		if j := s.data.transitionIndex(fromID, toID); j >= 0 {
			s.data.Transitions[j].Type = ttype
			s.data.Transitions[j].Duration = duration
		} else {
			s.data.Transitions = append(s.data.Transitions, Transition{
				ID:         newID(),
				FromClipID: fromID,
				ToClipID:   toID,
				Type:       ttype,
				Duration:   duration,
			})
		}
	}

	s.touch()
	s.notify(OpAutoTransitions)
	return s.data.Clone(), nil
}
