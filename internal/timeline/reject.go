package timeline

import (
	"errors"
	"fmt"
)

// Reason identifies why a timeline command was rejected. Rejected commands
// leave the document unchanged; no partial mutation is ever observable.
type Reason string

const (
	ReasonClipNotFound       Reason = "clip_not_found"
	ReasonMarkerNotFound     Reason = "marker_not_found"
	ReasonTransitionNotFound Reason = "transition_not_found"
	ReasonSplitOutOfRange    Reason = "split_out_of_range"
	ReasonNegativeInPoint    Reason = "negative_in_point"
	ReasonInvertedRange      Reason = "inverted_range"
	ReasonUnknownType        Reason = "unknown_type"
	ReasonBadReorder         Reason = "bad_reorder"
	ReasonNotEnoughClips     Reason = "not_enough_clips"
	ReasonInvalidDocument    Reason = "invalid_document"
)

// Command names used in rejection messages.
const (
	OpAddClip          = "add_clip"
	OpUpdateClip       = "update_clip"
	OpRemoveClip       = "remove_clip"
	OpSelectClip       = "select_clip"
	OpSplitClip        = "split_clip"
	OpTrimIn           = "trim_in"
	OpTrimOut          = "trim_out"
	OpSetSpeed         = "set_speed"
	OpReorderClips     = "reorder_clips"
	OpSetTransition    = "set_transition"
	OpRemoveTransition = "remove_transition"
	OpAutoTransitions  = "auto_transitions"
	OpAddMarker        = "add_marker"
	OpRemoveMarker     = "remove_marker"
	OpLoad             = "load"
)

// Rejection is the error returned by a command that would violate a
// document invariant.
type Rejection struct {
	Op     string
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s rejected: %s", r.Op, r.Reason)
	}
	return fmt.Sprintf("%s rejected: %s: %s", r.Op, r.Reason, r.Detail)
}

func rejectf(op string, reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Op: op, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a command rejection (as opposed to an
// infrastructure failure).
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// ReasonOf extracts the rejection reason from err, or "" when err is not a
// rejection.
func ReasonOf(err error) Reason {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}
