package actuator

import "sync"

// Move is one recorded relative motion.
type Move struct {
	DX int32
	DY int32
}

// MockSink records actions for tests. Setting Err makes every call fail
// after it has been recorded.
type MockSink struct {
	mu     sync.Mutex
	moves  []Move
	clicks []Button
	Err    error
}

// NewMockSink creates an empty MockSink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// MoveRelative records the move.
func (m *MockSink) MoveRelative(dx, dy int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, Move{DX: dx, DY: dy})
	return m.Err
}

// Click records the click.
func (m *MockSink) Click(button Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, button)
	return m.Err
}

// Moves returns a copy of the recorded moves.
func (m *MockSink) Moves() []Move {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Move(nil), m.moves...)
}

// Clicks returns a copy of the recorded clicks.
func (m *MockSink) Clicks() []Button {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Button(nil), m.clicks...)
}

// Reset clears all recorded actions.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = nil
	m.clicks = nil
}
