package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/reticle/internal/actuator"
	"github.com/ayusman/reticle/internal/capture"
	"github.com/ayusman/reticle/internal/config"
	"github.com/ayusman/reticle/internal/detection"
	"github.com/ayusman/reticle/internal/detector"
	"github.com/ayusman/reticle/internal/input"
	"github.com/ayusman/reticle/internal/monitor"
	"github.com/ayusman/reticle/internal/ringbuf"
	"github.com/ayusman/reticle/internal/targeting"
)

// Loop timing constants.
const (
	// DiagnosticsWindow is how many recent frames the FPS and latency figures cover.
	DiagnosticsWindow = 128
	// ReportInterval is how often stats are published and logged.
	ReportInterval = time.Second
)

// LoopConfig holds what the control loop needs besides its collaborators.
type LoopConfig struct {
	Tuning       config.Tuning
	Profile      string
	ScreenWidth  int
	ScreenHeight int
	CaptureFPS   int
	IdleFPS      int
}

// Counters are the loop's running totals.
type Counters struct {
	Frames     uint64
	Inferences uint64
	Reused     uint64
	Errors     uint64
}

// Loop is the per-frame control loop: capture, detect, suppress, select,
// then move or click. It owns the controller and is driven by one goroutine.
type Loop struct {
	config     LoopConfig
	mode       config.Mode
	center     targeting.Point
	source     capture.Source
	gate       *capture.ChangeGate
	detector   detector.Detector
	controller *actuator.Controller
	state      *input.State
	hub        *monitor.Hub

	armed atomic.Bool

	frames     atomic.Uint64
	inferences atomic.Uint64
	reused     atomic.Uint64
	errors     atomic.Uint64

	// Owned by the loop goroutine.
	last       []detection.Detection
	frameTimes *ringbuf.Buffer
	inferTimes *ringbuf.Buffer
	lastFrame  time.Time
	lastReport time.Time
}

// NewLoop creates a Loop. gate and hub may be nil. The loop starts armed.
func NewLoop(cfg LoopConfig, source capture.Source, gate *capture.ChangeGate, det detector.Detector, ctrl *actuator.Controller, state *input.State, hub *monitor.Hub) *Loop {
	l := &Loop{
		config:     cfg,
		mode:       cfg.Tuning.Mode(),
		center:     targeting.Point{X: float32(cfg.ScreenWidth) / 2, Y: float32(cfg.ScreenHeight) / 2},
		source:     source,
		gate:       gate,
		detector:   det,
		controller: ctrl,
		state:      state,
		hub:        hub,
		frameTimes: ringbuf.MustNew(DiagnosticsWindow),
		inferTimes: ringbuf.MustNew(DiagnosticsWindow),
	}
	l.armed.Store(true)
	return l
}

// Armed reports whether the loop may actuate.
func (l *Loop) Armed() bool {
	return l.armed.Load()
}

// SetArmed enables or disables actuation. Capture and detection keep running.
func (l *Loop) SetArmed(armed bool) {
	l.armed.Store(armed)
}

// Mode returns the operating mode.
func (l *Loop) Mode() config.Mode {
	return l.mode
}

// Counters returns the running totals. Safe from any goroutine.
func (l *Loop) Counters() Counters {
	return Counters{
		Frames:     l.frames.Load(),
		Inferences: l.inferences.Load(),
		Reused:     l.reused.Load(),
		Errors:     l.errors.Load(),
	}
}

// Run drives Step until ctx is cancelled or shutdown is requested. It paces
// at IdleFPS while no gating input is held and at CaptureFPS otherwise.
func (l *Loop) Run(ctx context.Context) {
	interval := l.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("mode", string(l.mode)).Str("profile", l.config.Profile).Msg("control loop started")
	defer log.Info().Msg("control loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.state.Done():
			return
		case <-ticker.C:
		}

		if err := l.Step(); err != nil {
			log.Debug().Err(err).Msg("frame skipped")
		}

		if next := l.interval(); next != interval {
			interval = next
			ticker.Reset(interval)
			l.source.SetFPS(int(time.Second / interval))
			log.Debug().Dur("interval", interval).Msg("pacing changed")
		}

		l.report(time.Now())
	}
}

// Step processes one frame. Collaborator failures are counted and returned;
// the frame is then skipped.
func (l *Loop) Step() error {
	now := time.Now()
	if !l.lastFrame.IsZero() {
		l.frameTimes.Push(float32(now.Sub(l.lastFrame).Seconds() * 1000))
	}
	l.lastFrame = now

	frame, err := l.source.ReadFrame()
	if err != nil {
		l.errors.Add(1)
		return fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	boxes, err := l.detect(frame)
	if err != nil {
		l.errors.Add(1)
		return err
	}

	snap := l.act(boxes)
	l.frames.Add(1)
	l.publish(frame, snap)
	return nil
}

// detect returns screen-space boxes for frame, reusing the previous result
// when the change gate says the frame is unchanged.
func (l *Loop) detect(frame *gocv.Mat) ([]detection.Detection, error) {
	if l.gate != nil {
		if changed, _ := l.gate.Changed(frame); !changed && l.last != nil {
			l.reused.Add(1)
			return l.last, nil
		}
	}

	start := time.Now()
	dets, err := l.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	l.inferTimes.Push(float32(time.Since(start).Seconds() * 1000))
	l.inferences.Add(1)

	t := l.config.Tuning
	dets = detection.FilterByConfidence(dets, t.ConfThreshold)
	dets = detection.Suppress(dets, t.IOUThreshold)
	l.last = detection.Scale(dets, float32(l.config.ScreenWidth), float32(l.config.ScreenHeight))
	return l.last, nil
}

// act applies the mode's policy to boxes and returns the frame snapshot.
func (l *Loop) act(boxes []detection.Detection) monitor.Snapshot {
	t := l.config.Tuning
	snap := monitor.Snapshot{
		Timestamp: time.Now().UnixMilli(),
		Width:     l.config.ScreenWidth,
		Height:    l.config.ScreenHeight,
		Boxes:     boxes,
	}

	offset, found := targeting.Select(boxes, l.center, t.MaxRange)
	if found {
		anchor := targeting.Point{X: l.center.X + offset.DX, Y: l.center.Y + offset.DY}
		snap.Anchor = &anchor
		snap.Offset = &offset
	}

	if !l.Armed() {
		return snap
	}

	switch l.mode {
	case config.ModeTrack:
		if found && trackingHeld(t, l.state) {
			l.controller.Update(offset)
		}
	case config.ModeTrigger:
		if triggerHeld(t, l.state) && targeting.ShouldTrigger(boxes, l.center, t.TriggerBoxPadding) {
			l.controller.Trigger()
			snap.Triggered = true
		}
	}
	return snap
}

func (l *Loop) publish(frame *gocv.Mat, snap monitor.Snapshot) {
	if l.hub == nil {
		return
	}
	l.hub.PublishSnapshot(snap)

	if !l.hub.Watching() {
		return
	}
	jpeg, err := monitor.Render(frame, snap)
	if err != nil {
		log.Debug().Err(err).Msg("render failed")
		return
	}
	l.hub.PublishFrame(jpeg)
}

// interval returns the ticker period for the current input state.
func (l *Loop) interval() time.Duration {
	fps := l.config.IdleFPS
	if l.active() {
		fps = l.config.CaptureFPS
	}
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}

// active reports whether the loop would act on a target right now.
func (l *Loop) active() bool {
	if !l.Armed() {
		return false
	}
	if l.mode == config.ModeTrigger {
		return triggerHeld(l.config.Tuning, l.state)
	}
	return trackingHeld(l.config.Tuning, l.state)
}

// Stats summarizes the loop's diagnostics. Call from the loop goroutine.
func (l *Loop) Stats() monitor.Stats {
	c := l.Counters()
	s := monitor.Stats{
		Mode:        string(l.mode),
		Profile:     l.config.Profile,
		Armed:       l.Armed(),
		MaxFrameMs:  l.frameTimes.Max(),
		InferenceMs: l.inferTimes.Mean(),
		Frames:      c.Frames,
		Inferences:  c.Inferences,
		Reused:      c.Reused,
		Errors:      c.Errors,
		Actuator:    l.controller.Stats(),
		Buttons:     l.state.Snapshot(),
		UpdatedAt:   time.Now(),
	}
	if sum := l.frameTimes.Sum(); sum > 0 {
		s.FPS = float32(l.frameTimes.Len()) * 1000 / sum
	}
	return s
}

func (l *Loop) report(now time.Time) {
	if now.Sub(l.lastReport) < ReportInterval {
		return
	}
	l.lastReport = now

	s := l.Stats()
	if l.hub != nil {
		l.hub.PublishStats(s)
	}
	log.Info().
		Float32("fps", s.FPS).
		Float32("max_frame_ms", s.MaxFrameMs).
		Float32("inference_ms", s.InferenceMs).
		Uint64("frames", s.Frames).
		Uint64("moves", s.Actuator.Moves).
		Uint64("clicks", s.Actuator.Clicks).
		Uint64("errors", s.Errors).
		Bool("armed", s.Armed).
		Msg("loop stats")
}

// trackingHeld reports whether a configured tracking button is down.
func trackingHeld(t config.Tuning, s *input.State) bool {
	return (t.TrackingOnLeft && s.IsPressed(input.Left)) ||
		(t.TrackingOnRight && s.IsPressed(input.Right))
}

// triggerHeld reports whether every configured trigger condition holds.
// With no conditions configured the trigger is always live.
func triggerHeld(t config.Tuning, s *input.State) bool {
	if t.TriggerOnRight && !s.IsPressed(input.Right) {
		return false
	}
	if t.TriggerOnSide && !s.AnySide() {
		return false
	}
	return true
}
