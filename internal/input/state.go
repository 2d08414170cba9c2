// Package input holds the pointer button state shared between the input
// listener and the control loop.
package input

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Button is a pointer button tracked by State.
type Button int

const (
	Left Button = iota
	Right
	SideUp
	SideDown

	numButtons
)

var buttonNames = [numButtons]string{
	Left:     "left",
	Right:    "right",
	SideUp:   "side_up",
	SideDown: "side_down",
}

func (b Button) String() string {
	if b < 0 || b >= numButtons {
		return fmt.Sprintf("Button(%d)", int(b))
	}
	return buttonNames[b]
}

// ParseButton maps a button name as sent by listener plugins to a Button.
func ParseButton(name string) (Button, bool) {
	for i, n := range buttonNames {
		if n == name {
			return Button(i), true
		}
	}
	return 0, false
}

// State is the set of button flags written by the listener and polled by the
// control loop. Reads may lag a write by one event; callers only use it for
// level-triggered gating.
//
// State also carries the shutdown signal raised by the panic key.
type State struct {
	buttons [numButtons]atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewState returns a State with every button released.
func NewState() *State {
	return &State{done: make(chan struct{})}
}

// IsPressed reports the last known state of b. Unknown buttons read as released.
func (s *State) IsPressed(b Button) bool {
	if b < 0 || b >= numButtons {
		return false
	}
	return s.buttons[b].Load()
}

// Set records whether b is held. Only the listener goroutine calls it.
func (s *State) Set(b Button, pressed bool) {
	if b < 0 || b >= numButtons {
		return
	}
	s.buttons[b].Store(pressed)
}

// AnySide reports whether either side button is held.
func (s *State) AnySide() bool {
	return s.IsPressed(SideUp) || s.IsPressed(SideDown)
}

// Snapshot returns the pressed flags keyed by button name.
func (s *State) Snapshot() map[string]bool {
	out := make(map[string]bool, numButtons)
	for i := range s.buttons {
		out[buttonNames[i]] = s.buttons[i].Load()
	}
	return out
}

// RequestShutdown closes Done. Calling it more than once is safe.
func (s *State) RequestShutdown() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once shutdown has been requested.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// ShuttingDown reports whether shutdown has been requested.
func (s *State) ShuttingDown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
