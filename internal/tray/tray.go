// Package tray provides a desktop system tray menu for the kiosk operator.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the operator tray application.
type Tray struct {
	onToggle func(enabled bool)
	onReset  func()
	onQuit   func()
	enabled  bool
	mu       sync.RWMutex

	menuToggle *systray.MenuItem
}

// New creates a new Tray instance with detection enabled by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback for the detection enable/disable toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnReset sets the callback for the cooldown reset menu item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Photobooth")
	systray.SetTooltip("AI Photobooth Kiosk")

	t.menuToggle = systray.AddMenuItem("● Detection on", "Toggle palm detection")
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset cooldown", "Allow an immediate trigger")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit the photobooth service")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if enabled {
		t.menuToggle.SetTitle("● Detection on")
	} else {
		t.menuToggle.SetTitle("○ Detection off")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleReset() {
	t.mu.RLock()
	callback := t.onReset
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}
