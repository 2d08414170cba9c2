// Package tray provides the system tray menu: arm/disarm, mode display and quit.
package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
)

// Controls is what the tray drives.
type Controls interface {
	Armed() bool
	SetArmed(armed bool)
}

// Tray represents the system tray application.
type Tray struct {
	controls Controls
	mode     string
	profile  string
	onQuit   func()
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
}

// New creates a Tray for controls running in mode with profile.
func New(controls Controls, mode, profile string) *Tray {
	return &Tray{
		controls: controls,
		mode:     mode,
		profile:  profile,
	}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray and blocks until ctx is cancelled or Quit is
// chosen. It must be called from the main goroutine.
func (t *Tray) Run(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			systray.Quit()
		case <-stop:
		}
	}()

	systray.Run(t.onReady, func() {})
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Reticle")
	systray.SetTooltip("Reticle " + t.mode)

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(ToggleTitle(t.controls.Armed()), "Arm or disarm actuation")
	t.mu.Unlock()
	systray.AddSeparator()

	menuMode := systray.AddMenuItem(StatusTitle(t.mode, t.profile), "Operating mode")
	menuMode.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Reticle")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// Toggle flips the armed state and returns the new value.
func (t *Tray) Toggle() bool {
	armed := !t.controls.Armed()
	t.controls.SetArmed(armed)

	t.mu.RLock()
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(ToggleTitle(armed))
	}
	t.mu.RUnlock()

	return armed
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// ToggleTitle is the label of the arm/disarm item.
func ToggleTitle(armed bool) string {
	if armed {
		return "● Armed"
	}
	return "○ Disarmed"
}

// StatusTitle is the label of the mode item.
func StatusTitle(mode, profile string) string {
	if profile == "" {
		return "Mode: " + mode
	}
	return "Mode: " + mode + " (" + profile + ")"
}
