// Package config provides configuration management for the Cutbench Agent.
// Configuration is loaded from defaults, an optional TOML file, and
// environment variable overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 8686
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutbench"

	// Environment variable names
	EnvConfigFile     = "CUTBENCH_CONFIG"
	EnvPort           = "CUTBENCH_PORT"
	EnvLogLevel       = "CUTBENCH_LOG_LEVEL"
	EnvDataDir        = "CUTBENCH_DATA_DIR"
	EnvHeadless       = "CUTBENCH_HEADLESS"
	EnvInferenceURL   = "CUTBENCH_INFERENCE_URL"
	EnvInferenceToken = "CUTBENCH_INFERENCE_TOKEN"
	EnvFFprobePath    = "CUTBENCH_FFPROBE_PATH"

	// Filenames inside the data directory
	DBFilename     = "cutbench.db"
	ConfigFilename = "config.toml"
	LockFilename   = "agent.lock"

	// Probe defaults
	DefaultProbeTimeout = 30 // seconds

	// Job runner defaults
	DefaultJobPollInterval = 2 // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LockPath() string
	ExportsDir() string
	Headless() bool
	InferenceURL() string
	InferenceToken() string
	FFprobePath() string
	ProbeTimeout() time.Duration
	JobPollInterval() time.Duration
}

// fileConfig mirrors the optional config.toml layout.
type fileConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`
	Headless bool   `toml:"headless"`

	Inference struct {
		URL   string `toml:"url"`
		Token string `toml:"token"`
	} `toml:"inference"`

	Media struct {
		FFprobePath  string `toml:"ffprobe_path"`
		ProbeTimeout int    `toml:"probe_timeout"`
	} `toml:"media"`

	Jobs struct {
		PollInterval int `toml:"poll_interval"`
	} `toml:"jobs"`
}

// EnvConfig holds the resolved configuration values.
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	inferenceURL   string
	inferenceToken string

	ffprobePath  string
	probeTimeout time.Duration

	jobPollInterval time.Duration
}

// New resolves configuration: built-in defaults, then the TOML file if one
// exists, then environment variables.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		probeTimeout:    DefaultProbeTimeout * time.Second,
		jobPollInterval: DefaultJobPollInterval * time.Second,
	}

	if err := cfg.applyFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.port)
	}

	return cfg, nil
}

// applyFile loads the TOML config file when present. A missing file is not
// an error; a malformed one is.
func (c *EnvConfig) applyFile() error {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		path = filepath.Join(defaultDataDir(), ConfigFilename)
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	if err := toml.NewDecoder(file).Decode(&fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Headless {
		c.headless = true
	}
	if fc.Inference.URL != "" {
		c.inferenceURL = fc.Inference.URL
	}
	if fc.Inference.Token != "" {
		c.inferenceToken = fc.Inference.Token
	}
	if fc.Media.FFprobePath != "" {
		c.ffprobePath = fc.Media.FFprobePath
	}
	if fc.Media.ProbeTimeout > 0 {
		c.probeTimeout = time.Duration(fc.Media.ProbeTimeout) * time.Second
	}
	if fc.Jobs.PollInterval > 0 {
		c.jobPollInterval = time.Duration(fc.Jobs.PollInterval) * time.Second
	}

	return nil
}

// applyEnv overrides file/default values with environment variables.
func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}

	if u := os.Getenv(EnvInferenceURL); u != "" {
		c.inferenceURL = u
	}
	if t := os.Getenv(EnvInferenceToken); t != "" {
		c.inferenceToken = t
	}
	if fp := os.Getenv(EnvFFprobePath); fp != "" {
		c.ffprobePath = fp
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LockPath returns the single-instance lock file path
func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

// ExportsDir returns the directory export artifacts are written to
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// InferenceURL returns the base URL of the inference service, or "" when
// the stub client should be used
func (c *EnvConfig) InferenceURL() string {
	return c.inferenceURL
}

// InferenceToken returns the bearer token for the inference service
func (c *EnvConfig) InferenceToken() string {
	return c.inferenceToken
}

// FFprobePath returns the configured ffprobe binary path, or "" for
// PATH auto-detection
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// ProbeTimeout returns the per-file media probe timeout
func (c *EnvConfig) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

// JobPollInterval returns how often the job runner polls for queued work
func (c *EnvConfig) JobPollInterval() time.Duration {
	return c.jobPollInterval
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
