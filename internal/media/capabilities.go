package media

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCapabilitiesTTL = 5 * time.Minute

// Capabilities describes the media tooling available on this machine.
type Capabilities struct {
	FFprobeAvailable bool      `json:"ffprobeAvailable"`
	FFprobeVersion   string    `json:"ffprobeVersion,omitempty"`
	FFprobePath      string    `json:"ffprobePath,omitempty"`
	ProbedAt         time.Time `json:"probedAt"`
}

// Doctor probes the local media tooling.
type Doctor interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// RunDoctor checks the resolved ffprobe binary by asking it for its
// version. A binary that fails to run yields an unavailable result, not an
// error; the agent keeps running without probing support.
func (p *FFProber) RunDoctor(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobe, "-version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard

	caps := &Capabilities{FFprobePath: p.ffprobe, ProbedAt: time.Now()}
	if err := cmd.Run(); err != nil {
		if p.cfg.Logger != nil {
			p.cfg.Logger.Warn("ffprobe version check failed", "error", err)
		}
		return caps, nil
	}

	caps.FFprobeAvailable = true
	line, _, _ := strings.Cut(stdout.String(), "\n")
	caps.FFprobeVersion = strings.TrimSpace(line)

	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("media doctor probe complete", "version", caps.FFprobeVersion)
	}
	return caps, nil
}

// CachedDoctor wraps a Doctor to cache probe results with a TTL, so the
// capabilities endpoint does not spawn a subprocess per request.
type CachedDoctor struct {
	doctor Doctor
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around capability probes.
func NewCachedDoctor(doctor Doctor, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		doctor: doctor,
		ttl:    defaultCapabilitiesTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns whatever is cached without probing.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.doctor.RunDoctor(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("capabilities probe failed", "error", err)
		}
		// Return stale cache if available
		if d.cached != nil {
			if d.logger != nil {
				d.logger.Info("returning stale capabilities cache")
			}
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
