// Package actuator turns target offsets into relative pointer motion and
// discrete clicks.
package actuator

import (
	"github.com/rs/zerolog/log"
)

// Button identifies a pointer button on the actuator side.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Sink performs pointer actions. Both calls are best effort; callers ignore
// failures beyond counting them.
type Sink interface {
	MoveRelative(dx, dy int32) error
	Click(button Button) error
}

// NopSink discards every action. It backs dry runs where no actuator plugin
// is configured.
type NopSink struct{}

// MoveRelative logs the move at trace level and does nothing.
func (NopSink) MoveRelative(dx, dy int32) error {
	log.Trace().Int32("dx", dx).Int32("dy", dy).Msg("dry-run move")
	return nil
}

// Click logs the click at trace level and does nothing.
func (NopSink) Click(button Button) error {
	log.Trace().Str("button", string(button)).Msg("dry-run click")
	return nil
}
