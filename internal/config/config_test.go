package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvLogLevel)
	os.Unsetenv(EnvHeadless)
	// Point the file lookup somewhere empty so a developer's real
	// ~/.cutbench/config.toml cannot leak into the test.
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.toml"))
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.Headless() {
		t.Error("Headless() = true, want false by default")
	}
	if cfg.InferenceURL() != "" {
		t.Errorf("InferenceURL() = %q, want empty", cfg.InferenceURL())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.toml"))
	os.Setenv(EnvPort, "9191")
	os.Setenv(EnvLogLevel, "debug")
	os.Setenv(EnvHeadless, "true")
	os.Setenv(EnvInferenceURL, "https://infer.example.com")
	defer func() {
		os.Unsetenv(EnvConfigFile)
		os.Unsetenv(EnvPort)
		os.Unsetenv(EnvLogLevel)
		os.Unsetenv(EnvHeadless)
		os.Unsetenv(EnvInferenceURL)
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
	if cfg.InferenceURL() != "https://infer.example.com" {
		t.Errorf("InferenceURL() = %q, want https://infer.example.com", cfg.InferenceURL())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.toml"))
	defer os.Unsetenv(EnvConfigFile)

	tests := []struct {
		name string
		port string
	}{
		{"not a number", "abc"},
		{"zero", "0"},
		{"too large", "70000"},
		{"negative", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv(EnvPort, tt.port)
			defer os.Unsetenv(EnvPort)

			if _, err := New(); err == nil {
				t.Errorf("New() with port %q should return error", tt.port)
			}
		})
	}
}

func TestNew_FileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
port = 9000
log_level = "warn"

[inference]
url = "https://infer.example.com"
token = "file-token"

[media]
ffprobe_path = "/opt/ffprobe"
probe_timeout = 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, path)
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel() = %q, want warn", cfg.LogLevel())
	}
	if cfg.InferenceToken() != "file-token" {
		t.Errorf("InferenceToken() = %q, want file-token", cfg.InferenceToken())
	}
	if cfg.FFprobePath() != "/opt/ffprobe" {
		t.Errorf("FFprobePath() = %q, want /opt/ffprobe", cfg.FFprobePath())
	}
	if cfg.ProbeTimeout() != 10*time.Second {
		t.Errorf("ProbeTimeout() = %v, want 10s", cfg.ProbeTimeout())
	}
}

func TestNew_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("port = 9000\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, path)
	os.Setenv(EnvPort, "9001")
	defer func() {
		os.Unsetenv(EnvConfigFile)
		os.Unsetenv(EnvPort)
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9001 {
		t.Errorf("Port() = %d, want env override 9001", cfg.Port())
	}
}

func TestNew_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("port = [not toml"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, path)
	defer os.Unsetenv(EnvConfigFile)

	if _, err := New(); err == nil {
		t.Error("New() with malformed config file should return error")
	}
}

func TestPaths(t *testing.T) {
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.toml"))
	os.Setenv(EnvDataDir, "/var/lib/cutbench")
	defer func() {
		os.Unsetenv(EnvConfigFile)
		os.Unsetenv(EnvDataDir)
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath() != filepath.Join("/var/lib/cutbench", DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.LockPath() != filepath.Join("/var/lib/cutbench", LockFilename) {
		t.Errorf("LockPath() = %q", cfg.LockPath())
	}
	if cfg.ExportsDir() != "/var/lib/cutbench/exports" {
		t.Errorf("ExportsDir() = %q", cfg.ExportsDir())
	}
}
