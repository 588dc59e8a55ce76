// Package tray provides the system tray menu for the kiosk operator.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handbooth/internal/app"
	"github.com/ayusman/handbooth/internal/session"
)

// Tray is the system tray menu. Callbacks run outside the tray lock.
type Tray struct {
	onToggle  func(enabled bool)
	onRestart func()
	onQuit    func()
	enabled   bool
	mu        sync.RWMutex

	menuToggle *systray.MenuItem
	menuState  *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray with detection enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback run when detection is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRestart sets the callback run when the operator restarts the session.
func (t *Tray) OnRestart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRestart = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray and blocks until Quit. On macOS it must be called
// from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Handbooth")
	systray.SetTooltip("Handbooth photo kiosk")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture detection")
	systray.AddSeparator()
	t.menuState = systray.AddMenuItem(StateTitle(session.Snapshot{}), "Session state")
	t.menuState.Disable()
	t.menuLast = systray.AddMenuItem(ConfirmationTitle(nil), "Last confirmed gesture")
	t.menuLast.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuRestart := systray.AddMenuItem("Restart Session", "Abandon the current session")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Handbooth")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRestart.ClickedCh:
				t.handleRestart()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleRestart() {
	t.mu.RLock()
	callback := t.onRestart
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

// SetState shows snap in the menu.
func (t *Tray) SetState(snap session.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuState != nil {
		t.menuState.SetTitle(StateTitle(snap))
	}
}

// SetLastConfirmation shows c in the menu.
func (t *Tray) SetLastConfirmation(c app.Confirmation) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuLast != nil {
		t.menuLast.SetTitle(ConfirmationTitle(&c))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// StateTitle is the menu line for snap.
func StateTitle(snap session.Snapshot) string {
	switch snap.State {
	case session.Countdown:
		return fmt.Sprintf("State: countdown (%d)", snap.Remaining)
	case session.Capturing, session.Reviewing:
		return fmt.Sprintf("State: %s, %d photo%s", snap.State, len(snap.Photos), plural(len(snap.Photos)))
	default:
		return "State: " + snap.State.String()
	}
}

// ConfirmationTitle is the menu line for the last confirmation, nil for none.
func ConfirmationTitle(c *app.Confirmation) string {
	if c == nil {
		return "Last: none"
	}
	title := fmt.Sprintf("Last: %s (hand %d)", c.Label, c.HandID)
	if !c.Accepted {
		title += ", ignored"
	}
	return title
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Detection On"
	}
	return "○ Detection Off"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
