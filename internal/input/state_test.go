package input

import (
	"sync"
	"testing"
	"time"
)

func TestState_SetAndIsPressed(t *testing.T) {
	s := NewState()

	for b := Button(0); b < numButtons; b++ {
		if s.IsPressed(b) {
			t.Errorf("%s should start released", b)
		}
	}

	s.Set(Right, true)
	if !s.IsPressed(Right) {
		t.Error("Right should be pressed")
	}
	if s.IsPressed(Left) {
		t.Error("Left should be unaffected")
	}

	s.Set(Right, false)
	if s.IsPressed(Right) {
		t.Error("Right should be released")
	}
}

func TestState_OutOfRangeButton(t *testing.T) {
	s := NewState()
	s.Set(Button(42), true)
	s.Set(Button(-1), true)

	if s.IsPressed(Button(42)) || s.IsPressed(Button(-1)) {
		t.Error("unknown buttons must read as released")
	}
}

func TestState_AnySide(t *testing.T) {
	tests := []struct {
		name     string
		up, down bool
		want     bool
	}{
		{"none", false, false, false},
		{"up", true, false, true},
		{"down", false, true, true},
		{"both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			s.Set(SideUp, tt.up)
			s.Set(SideDown, tt.down)
			if got := s.AnySide(); got != tt.want {
				t.Errorf("AnySide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseButton(t *testing.T) {
	tests := []struct {
		name string
		want Button
		ok   bool
	}{
		{"left", Left, true},
		{"right", Right, true},
		{"side_up", SideUp, true},
		{"side_down", SideDown, true},
		{"middle", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseButton(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseButton(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestButton_String(t *testing.T) {
	if Left.String() != "left" {
		t.Errorf("Left.String() = %q", Left.String())
	}
	if Button(9).String() != "Button(9)" {
		t.Errorf("Button(9).String() = %q", Button(9).String())
	}
}

func TestState_Snapshot(t *testing.T) {
	s := NewState()
	s.Set(Left, true)

	snap := s.Snapshot()
	if len(snap) != int(numButtons) {
		t.Fatalf("expected %d entries, got %d", numButtons, len(snap))
	}
	if !snap["left"] || snap["right"] {
		t.Errorf("unexpected snapshot %v", snap)
	}
}

func TestState_RequestShutdownIsIdempotent(t *testing.T) {
	s := NewState()

	if s.ShuttingDown() {
		t.Fatal("should not be shutting down yet")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RequestShutdown()
		}()
	}
	wg.Wait()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed")
	}
	if !s.ShuttingDown() {
		t.Error("ShuttingDown() should be true")
	}
}

// One writer, many readers, no locks: run with -race.
func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState()
	stop := make(chan struct{})

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = s.IsPressed(Left)
					_ = s.AnySide()
				}
			}
		}()
	}

	for i := 0; i < 10000; i++ {
		s.Set(Left, i%2 == 0)
		s.Set(SideUp, i%3 == 0)
	}
	s.Set(Left, true)
	close(stop)
	readers.Wait()

	if !s.IsPressed(Left) {
		t.Error("final write should be visible after readers stop")
	}
}
