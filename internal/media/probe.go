// Package media handles source video files: metadata probing through
// ffprobe, capability detection and HTTP range streaming for the editor's
// preview player.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 8 KB tail of stderr kept for diagnostics.
const maxStderrBytes = 8 * 1024

// ProbeResult is the metadata the agent keeps for an imported source video.
type ProbeResult struct {
	Duration    float64
	Width       int
	Height      int
	Codec       string
	Bitrate     int64
	FrameRate   float64
	AudioCodec  string
	AudioSample int
	HasAudio    bool
	SizeBytes   int64
}

// Prober extracts metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Config holds the prober's configuration.
type Config struct {
	FFprobePath  string        // path to ffprobe binary; empty = auto-detect
	ProbeTimeout time.Duration // timeout per probe
	Logger       *slog.Logger
	DebugPaths   bool // if true, log full file paths; otherwise sanitise
}

// FFProber shells out to ffprobe. It is the production Prober.
type FFProber struct {
	cfg     Config
	ffprobe string // resolved binary path
}

// NewFFProber creates an FFProber, resolving the ffprobe binary path.
func NewFFProber(cfg Config) (*FFProber, error) {
	bin, err := resolveFFprobe(cfg.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("media prober initialised", "ffprobe", bin)
	}
	return &FFProber{cfg: cfg, ffprobe: bin}, nil
}

// Probe runs ffprobe against the file and parses its JSON report. The
// file's size on disk is folded into the result.
func (p *FFProber) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat media file %s: %w", p.safePath(path), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		if p.cfg.Logger != nil {
			p.cfg.Logger.Warn("ffprobe failed",
				"exit_code", exitCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"stderr_tail", truncate(stderrBuf.String(), 512),
			)
		}
		return nil, fmt.Errorf("ffprobe exited %d: %s", exitCode, truncate(stderrBuf.String(), 512))
	}

	result, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	result.SizeBytes = stat.Size()

	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("media probed",
			"path", p.safePath(path),
			"duration_sec", result.Duration,
			"resolution", fmt.Sprintf("%dx%d", result.Width, result.Height),
			"fps", result.FrameRate,
			"has_audio", result.HasAudio,
		)
	}
	return result, nil
}

func (p *FFProber) safePath(path string) string {
	if p.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

// ffprobe JSON report, reduced to the fields the agent reads.
type probeReport struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// parseProbeOutput turns an ffprobe JSON report into a ProbeResult. The
// first video stream supplies dimensions, codec and frame rate; any audio
// stream sets HasAudio.
func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	var result ProbeResult
	result.Duration, _ = strconv.ParseFloat(report.Format.Duration, 64)
	result.Bitrate, _ = strconv.ParseInt(report.Format.BitRate, 10, 64)

	for _, s := range report.Streams {
		switch s.CodecType {
		case "video":
			if result.Width == 0 {
				result.Width = s.Width
				result.Height = s.Height
				result.Codec = s.CodecName
				result.FrameRate = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			result.HasAudio = true
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
				result.AudioSample, _ = strconv.Atoi(s.SampleRate)
			}
		}
	}

	if result.Width == 0 && !result.HasAudio {
		return nil, fmt.Errorf("ffprobe report has no usable streams")
	}
	return &result, nil
}

// parseFrameRate evaluates ffprobe's fractional rate notation ("30000/1001")
// to a float. Malformed or zero-denominator input yields 0.
func parseFrameRate(fraction string) float64 {
	if fraction == "" {
		return 0
	}
	parts := strings.SplitN(fraction, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

// resolveFFprobe finds a usable ffprobe binary.
func resolveFFprobe(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffprobe %q not found", preferred)
	}
	if p, err := exec.LookPath("ffprobe"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffprobe binary found on PATH")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}

// StubProber returns fixed metadata without touching ffprobe. Used in tests
// and when ffprobe is unavailable.
type StubProber struct {
	Result ProbeResult
	Err    error
	logger *slog.Logger
}

// NewStubProber creates a StubProber with a plausible default result.
func NewStubProber(logger *slog.Logger) *StubProber {
	return &StubProber{
		Result: ProbeResult{
			Duration:  60,
			Width:     1920,
			Height:    1080,
			Codec:     "h264",
			FrameRate: 30,
			HasAudio:  true,
		},
		logger: logger,
	}
}

func (s *StubProber) Probe(_ context.Context, path string) (*ProbeResult, error) {
	if s.logger != nil {
		s.logger.Info("stub prober: returning fixed metadata", "path", path)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	out := s.Result
	return &out, nil
}
