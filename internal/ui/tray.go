package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/cutbench/cutbench-agent/internal/project"
)

// Tray is the menu bar presence of the agent: a status line, a project
// counter, and controls for the background job runner.
type Tray struct {
	runner *project.Runner
	logger *slog.Logger

	statusItem   *systray.MenuItem
	projectsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onOpenEditor func() error
	onQuit       func()
}

type TrayConfig struct {
	Runner       *project.Runner
	Logger       *slog.Logger
	OnOpenEditor func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		onOpenEditor: cfg.OnOpenEditor,
		onQuit:       cfg.OnQuit,
	}
}

// Run blocks until the tray quits. It must be called from the main
// goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cutbench")
	systray.SetTooltip("Cutbench Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.projectsItem = systray.AddMenuItem("Projects: 0", "Known projects")
	t.projectsItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Editor...", "Open the editor in your browser")
	t.pauseItem = systray.AddMenuItem("Pause Jobs", "Pause export and analysis jobs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutbench Agent")

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpenEditor()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Jobs")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Jobs")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpenEditor() {
	if t.onOpenEditor != nil {
		if err := t.onOpenEditor(); err != nil {
			t.logger.Error("failed to open editor", "error", err)
		}
	}
}

// UpdateStatus sets the status line unless jobs are paused; the paused
// label stays until the user resumes.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateProjectsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.projectsItem.SetTitle(fmt.Sprintf("Projects: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
