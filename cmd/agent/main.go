package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/cutbench/cutbench-agent/internal/api"
	"github.com/cutbench/cutbench-agent/internal/config"
	"github.com/cutbench/cutbench-agent/internal/db"
	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/logging"
	"github.com/cutbench/cutbench-agent/internal/media"
	"github.com/cutbench/cutbench-agent/internal/project"
	"github.com/cutbench/cutbench-agent/internal/session"
	"github.com/cutbench/cutbench-agent/internal/ui"
	"github.com/cutbench/cutbench-agent/internal/ws"
)

var Version = config.Version

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create exports dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutbench agent", "version", Version, "data_dir", cfg.DataDir())

	// One agent per data directory; the editor assumes a single source of
	// truth for timeline state.
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another cutbench agent is already running (lock: %s)", cfg.LockPath())
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CUTBENCH AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var prober media.Prober
	var doctor *media.CachedDoctor

	ffprober, err := media.NewFFProber(media.Config{
		FFprobePath:  cfg.FFprobePath(),
		ProbeTimeout: cfg.ProbeTimeout(),
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("ffprobe unavailable, media metadata will be stubbed", "error", err)
		prober = media.NewStubProber(logger)
	} else {
		prober = ffprober
		doctor = media.NewCachedDoctor(ffprober, logger)

		initCtx, initCancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout())
		defer initCancel()
		if caps, err := doctor.Refresh(initCtx); err != nil {
			logger.Warn("initial media doctor probe failed", "error", err)
		} else {
			logger.Info("media capabilities detected",
				"ffprobe", caps.FFprobeAvailable,
				"version", caps.FFprobeVersion,
			)
		}
	}

	var inferenceClient inference.Client
	if cfg.InferenceURL() != "" {
		inferenceClient = inference.NewHTTPClient(cfg.InferenceURL(), cfg.InferenceToken(), logger)
		logger.Info("inference service configured", "base_url", cfg.InferenceURL())
	} else {
		inferenceClient = inference.NewStubClient(logger)
	}

	service := project.NewService(repo, prober, logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	manager := session.NewManager(service, repo, inferenceClient, hub, logger)

	runner := project.NewRunner(service, repo, inferenceClient, cfg.ExportsDir(), logger)
	runner.OnInsights = manager.OnInsights
	runner.OnJobDone = func(job *project.Job) {
		event := ws.EventExport
		if job.Type == project.JobTypeAnalysis {
			event = ws.EventAnalysis
		}
		hub.Publish(job.ProjectID, event, job)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		ExportsDir: cfg.ExportsDir(),
		Service:    service,
		Repository: repo,
		Runner:     runner,
		Doctor:     doctor,
		Streamer:   media.NewStreamer(logger),
		Sessions:   manager,
		Hub:        hub,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logger,
			OnOpenEditor: func() error {
				return openBrowser(fmt.Sprintf("http://127.0.0.1:%d", cfg.Port()))
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	manager.CloseAll()
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openBrowser launches the default browser at url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func ensureDeviceID(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
