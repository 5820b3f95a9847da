// Package playback tracks the playhead for an editing session and relays
// transport commands to the bound media controller. The browser owns the
// actual media element; the clock owns the authoritative playhead state.
package playback

import (
	"log/slog"
	"sync"
)

// Controller is the media endpoint bound to the clock. Commands are
// one-directional relays (clock to media) and must not re-enter the clock
// synchronously. Play may report an immediate rejection; rejections that
// surface later arrive through Clock.HandlePlayRejected instead.
type Controller interface {
	Play() error
	Pause()
	Seek(t float64)
}

// NopController discards all transport commands. Used when no media element
// is attached yet.
type NopController struct{}

func (NopController) Play() error  { return nil }
func (NopController) Pause()       {}
func (NopController) Seek(float64) {}

// State is the clock's externally visible state.
type State struct {
	Playhead float64 `json:"playhead"`
	Playing  bool    `json:"playing"`
	Duration float64 `json:"duration"`
}

// Clock is the playback state machine: Paused (initial) or Playing. All
// transitions are serialized through one mutex; asynchronous media feedback
// (timeupdate ticks, rejection reports, ended events) re-enters through the
// Handle methods and obeys the same serialization.
type Clock struct {
	mu       sync.Mutex
	playhead float64
	playing  bool
	duration float64

	ctrl   Controller
	logger *slog.Logger

	subs    map[int]func(State)
	nextSub int
}

// NewClock creates a paused clock at playhead 0 bound to ctrl.
func NewClock(ctrl Controller, logger *slog.Logger) *Clock {
	if ctrl == nil {
		ctrl = NopController{}
	}
	return &Clock{
		ctrl:   ctrl,
		logger: logger,
		subs:   make(map[int]func(State)),
	}
}

// Subscribe registers a callback invoked after every state change, in
// transition order. The returned function unsubscribes.
func (c *Clock) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Clock) notify() {
	st := State{Playhead: c.playhead, Playing: c.playing, Duration: c.duration}
	for _, fn := range c.subs {
		fn(st)
	}
}

// State returns the current playback state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Playhead: c.playhead, Playing: c.playing, Duration: c.duration}
}

// SeekTo clamps t to [0, duration], moves the playhead and issues a seek to
// the media controller. Scrubbing goes through here whether playing or
// paused; the media element never writes the playhead back except through
// gated timeupdate ticks.
func (c *Clock) SeekTo(t float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playhead = c.clamp(t)
	c.ctrl.Seek(c.playhead)
	c.notify()
	return State{Playhead: c.playhead, Playing: c.playing, Duration: c.duration}
}

// Play optimistically enters Playing and asks the controller to start. An
// immediate rejection (autoplay policy or similar) rolls the clock back to
// Paused; the playhead is untouched either way. Rejections are logged, not
// escalated.
func (c *Clock) Play() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = true
	if err := c.ctrl.Play(); err != nil {
		c.playing = false
		if c.logger != nil {
			c.logger.Warn("playback start rejected", "error", err, "playhead", c.playhead)
		}
	}
	c.notify()
	return State{Playhead: c.playhead, Playing: c.playing, Duration: c.duration}
}

// Pause enters Paused and pauses media unconditionally, even when already
// paused.
func (c *Clock) Pause() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = false
	c.ctrl.Pause()
	c.notify()
	return State{Playhead: c.playhead, Playing: c.playing, Duration: c.duration}
}

// HandleTimeUpdate applies a media-originated playhead tick. Ticks are
// ignored while paused so a scrub is never overwritten by a stale echo from
// the media element. Reaching the end of the timeline forces Paused.
func (c *Clock) HandleTimeUpdate(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	c.playhead = c.clamp(t)
	if c.duration > 0 && c.playhead >= c.duration {
		c.playing = false
	}
	c.notify()
}

// HandleEnded applies a media-originated end-of-stream event: the clock
// parks at the end of the timeline, paused.
func (c *Clock) HandleEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playhead = c.duration
	c.playing = false
	c.notify()
}

// HandlePlayRejected rolls back an optimistic Play that the media endpoint
// reported as rejected after the fact. The playhead is untouched.
func (c *Clock) HandlePlayRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	c.playing = false
	if c.logger != nil {
		c.logger.Warn("playback start rejected", "reason", reason, "playhead", c.playhead)
	}
	c.notify()
}

// SetDuration updates the timeline duration the clock clamps against and
// re-clamps the playhead. Called after every timeline mutation.
func (c *Clock) SetDuration(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	if d == c.duration {
		return
	}

	c.duration = d
	if c.playhead > d {
		c.playhead = d
	}
	c.notify()
}

// clamp bounds t to [0, duration]. Callers hold c.mu.
func (c *Clock) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > c.duration {
		return c.duration
	}
	return t
}
