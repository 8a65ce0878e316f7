package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

type Tray struct {
	logger *slog.Logger

	statusItem   *systray.MenuItem
	conflictItem *systray.MenuItem
	syncNowItem  *systray.MenuItem

	mu sync.Mutex

	onSyncNow func() error
	onQuit    func()
}

type TrayConfig struct {
	Logger    *slog.Logger
	OnSyncNow func() error
	OnQuit    func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger:    cfg.Logger,
		onSyncNow: cfg.OnSyncNow,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Pitchmark")
	systray.SetTooltip("Pitchmark Agent")

	t.statusItem = systray.AddMenuItem("Sync: Idle", "Current sync status")
	t.statusItem.Disable()

	t.conflictItem = systray.AddMenuItem("Conflicts: 0", "Videos awaiting manual resolution")
	t.conflictItem.Disable()

	systray.AddSeparator()

	t.syncNowItem = systray.AddMenuItem("Sync Now", "Synchronize the current video")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Pitchmark Agent")

	go func() {
		for {
			select {
			case <-t.syncNowItem.ClickedCh:
				t.handleSyncNow()
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

func (t *Tray) handleSyncNow() {
	if t.onSyncNow != nil {
		if err := t.onSyncNow(); err != nil {
			t.logger.Error("manual sync failed", "error", err)
		}
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle("Sync: " + status)
}

func (t *Tray) UpdateConflictCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conflictItem == nil {
		return
	}
	t.conflictItem.SetTitle(fmt.Sprintf("Conflicts: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
