package actuator

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/ringbuf"
	"github.com/ayusman/reticle/internal/targeting"
)

// IntegralWindow is how many error*dt samples the integral term sums over.
const IntegralWindow = 128

// minDerivativeDT is the smallest interval the derivative term divides by.
const minDerivativeDT = time.Microsecond

// Gains are the PID coefficients.
type Gains struct {
	Kp float32 `json:"kp" yaml:"kp"`
	Ki float32 `json:"ki" yaml:"ki"`
	Kd float32 `json:"kd" yaml:"kd"`
}

// Stats counts what a Controller has sent to its sink.
type Stats struct {
	Moves    uint64 `json:"moves"`
	Clicks   uint64 `json:"clicks"`
	Failures uint64 `json:"failures"`
}

// Controller is a PID filter from target offset to clamped pointer deltas.
//
// Update and Trigger must be called from a single goroutine. Stats may be
// read from anywhere.
type Controller struct {
	gains    Gains
	maxSpeed int32
	sink     Sink
	now      func() time.Time

	lastError float32
	lastTime  time.Time
	integral  *ringbuf.Buffer

	moves    atomic.Uint64
	clicks   atomic.Uint64
	failures atomic.Uint64
}

// NewController creates a Controller. A negative maxSpeed is treated as 0.
func NewController(gains Gains, maxSpeed int32, sink Sink) *Controller {
	return newControllerWithClock(gains, maxSpeed, sink, time.Now)
}

func newControllerWithClock(gains Gains, maxSpeed int32, sink Sink, now func() time.Time) *Controller {
	if maxSpeed < 0 {
		maxSpeed = 0
	}
	return &Controller{
		gains:    gains,
		maxSpeed: maxSpeed,
		sink:     sink,
		now:      now,
		lastTime: now(),
		integral: ringbuf.MustNew(IntegralWindow),
	}
}

// Gains returns the controller's coefficients.
func (c *Controller) Gains() Gains {
	return c.gains
}

// MaxSpeed returns the per-axis output clamp.
func (c *Controller) MaxSpeed() int32 {
	return c.maxSpeed
}

// Update runs one PID step towards offset and sends the resulting move to
// the sink. It returns the deltas it computed.
//
// A zero or non-finite offset has no direction: nothing is sent, but the
// step still advances time and records a zero error. A step whose deltas
// truncate to (0, 0) is not sent either.
func (c *Controller) Update(offset targeting.Offset) (dx, dy int32) {
	now := c.now()
	dt := now.Sub(c.lastTime)
	dtSec := float32(dt.Seconds())

	errMag := float32(math.Hypot(float64(offset.DX), float64(offset.DY)))
	if errMag == 0 || isNaNOrInf(errMag) {
		c.advance(now, 0, dtSec)
		return 0, 0
	}

	dirX := offset.DX / errMag
	dirY := offset.DY / errMag

	p := c.gains.Kp * errMag
	i := c.gains.Ki * c.integral.Sum()
	var d float32
	if dt >= minDerivativeDT {
		d = c.gains.Kd * (errMag - c.lastError) / dtSec
	}
	output := p + i + d

	c.advance(now, errMag, dtSec)

	dx = c.clamp(output * dirX)
	dy = c.clamp(output * dirY)
	if dx == 0 && dy == 0 {
		return 0, 0
	}

	if err := c.sink.MoveRelative(dx, dy); err != nil {
		c.failures.Add(1)
		log.Debug().Err(err).Int32("dx", dx).Int32("dy", dy).Msg("move failed")
		return dx, dy
	}
	c.moves.Add(1)
	return dx, dy
}

// Trigger sends a primary click. No PID state is involved.
func (c *Controller) Trigger() {
	if err := c.sink.Click(ButtonLeft); err != nil {
		c.failures.Add(1)
		log.Debug().Err(err).Msg("click failed")
		return
	}
	c.clicks.Add(1)
}

// Stats returns a snapshot of the sink counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Moves:    c.moves.Load(),
		Clicks:   c.clicks.Load(),
		Failures: c.failures.Load(),
	}
}

func (c *Controller) advance(now time.Time, errMag, dtSec float32) {
	c.lastTime = now
	c.integral.Push(errMag * dtSec)
	c.lastError = errMag
}

// clamp limits v to ±maxSpeed and truncates toward zero.
func (c *Controller) clamp(v float32) int32 {
	limit := float32(c.maxSpeed)
	switch {
	case isNaNOrInf(v):
		return 0
	case v > limit:
		v = limit
	case v < -limit:
		v = -limit
	}
	return int32(v)
}

func isNaNOrInf(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
