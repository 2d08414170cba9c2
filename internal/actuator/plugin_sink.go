package actuator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/plugin"
)

// Plugin actions understood by actuator plugins.
const (
	ActionMove  = "move"
	ActionClick = "click"
	ActionPing  = "ping"
)

// QueueSize bounds how many actions may wait for the plugin to read them.
const QueueSize = 8

// drainTimeout is how long Close lets queued actions reach the plugin
// before it stops the process.
const drainTimeout = 500 * time.Millisecond

var (
	// ErrSinkBusy is returned when the plugin is behind and the queue is full.
	// The action is dropped.
	ErrSinkBusy = errors.New("actuator plugin is busy, action dropped")
	// ErrSinkClosed is returned after Close.
	ErrSinkClosed = errors.New("actuator sink is closed")
)

// MoveParams is the payload of a move request.
type MoveParams struct {
	DX int32 `json:"dx"`
	DY int32 `json:"dy"`
}

// ClickParams is the payload of a click request.
type ClickParams struct {
	Button Button `json:"button"`
}

type pluginAction struct {
	name   string
	params any
}

// PluginSink forwards actions to a long-lived actuator plugin process.
//
// MoveRelative and Click only enqueue; a writer goroutine feeds the plugin.
// When the plugin stops reading, the queue fills and further actions fail
// with ErrSinkBusy instead of blocking the caller. Stale moves are dropped
// rather than delivered late.
type PluginSink struct {
	proc  *plugin.Process
	queue chan pluginAction
	stop  chan struct{}
	done  chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
}

// NewPluginSink wraps a running plugin process and starts its writer.
func NewPluginSink(proc *plugin.Process) *PluginSink {
	s := &PluginSink{
		proc:  proc,
		queue: make(chan pluginAction, QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// MoveRelative asks the plugin to move the pointer by (dx, dy).
func (s *PluginSink) MoveRelative(dx, dy int32) error {
	return s.enqueue(pluginAction{name: ActionMove, params: MoveParams{DX: dx, DY: dy}})
}

// Click asks the plugin to press and release button.
func (s *PluginSink) Click(button Button) error {
	return s.enqueue(pluginAction{name: ActionClick, params: ClickParams{Button: button}})
}

// Ping checks that the plugin is alive and able to act.
func (s *PluginSink) Ping(ctx context.Context) error {
	_, err := s.proc.Call(ctx, ActionPing, nil)
	return err
}

// Dropped returns how many actions were refused because the queue was full.
func (s *PluginSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Failed returns how many dequeued actions could not be written to the plugin.
func (s *PluginSink) Failed() uint64 {
	return s.failed.Load()
}

func (s *PluginSink) enqueue(a pluginAction) error {
	select {
	case <-s.proc.Done():
		return plugin.ErrProcessClosed
	case <-s.stop:
		return ErrSinkClosed
	default:
	}

	select {
	case s.queue <- a:
		return nil
	default:
		s.dropped.Add(1)
		return ErrSinkBusy
	}
}

func (s *PluginSink) writeLoop() {
	defer close(s.done)

	for {
		select {
		case a := <-s.queue:
			s.write(a)
		case <-s.stop:
			for {
				select {
				case a := <-s.queue:
					s.write(a)
				default:
					return
				}
			}
		}
	}
}

func (s *PluginSink) write(a pluginAction) {
	if err := s.proc.Send(a.name, a.params); err != nil {
		s.failed.Add(1)
		log.Debug().Err(err).Str("action", a.name).Msg("actuator write failed")
	}
}

// Close flushes queued actions, giving the plugin a short grace period, then
// stops the plugin process.
func (s *PluginSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		select {
		case <-s.done:
		case <-time.After(drainTimeout):
			log.Warn().Str("plugin", s.proc.Name()).Msg("actuator plugin not reading, discarding queued actions")
		}

		err = s.proc.Close()
		<-s.done

		if d, f := s.Dropped(), s.Failed(); d > 0 || f > 0 {
			log.Info().Uint64("dropped", d).Uint64("failed", f).Msg("actuator queue summary")
		}
	})
	return err
}
