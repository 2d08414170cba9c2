package input

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/plugin"
)

// DefaultPanicKey is the key that stops the process when none is configured.
const DefaultPanicKey = "End"

// Notification events emitted by listener plugins.
const (
	EventButton = "button"
	EventKey    = "key"
)

// ButtonEvent is the payload of a "button" notification.
type ButtonEvent struct {
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// KeyEvent is the payload of a "key" notification.
type KeyEvent struct {
	Key     string `json:"key"`
	Pressed bool   `json:"pressed"`
}

// Listener applies raw input events to a State.
type Listener struct {
	state    *State
	panicKey string
}

// NewListener creates a Listener writing to state. An empty panicKey selects
// DefaultPanicKey.
func NewListener(state *State, panicKey string) *Listener {
	if panicKey == "" {
		panicKey = DefaultPanicKey
	}
	return &Listener{state: state, panicKey: panicKey}
}

// HandleButton records a button transition. Unknown buttons are ignored.
func (l *Listener) HandleButton(ev ButtonEvent) {
	b, ok := ParseButton(ev.Button)
	if !ok {
		return
	}
	l.state.Set(b, ev.Pressed)
}

// HandleKey requests shutdown when the panic key goes down.
func (l *Listener) HandleKey(ev KeyEvent) {
	if ev.Pressed && strings.EqualFold(ev.Key, l.panicKey) {
		log.Warn().Str("key", ev.Key).Msg("panic key pressed, shutting down")
		l.state.RequestShutdown()
	}
}

// Handle decodes one plugin notification and applies it.
func (l *Listener) Handle(note plugin.Response) {
	switch note.Event {
	case EventButton:
		var ev ButtonEvent
		if err := json.Unmarshal(note.Data, &ev); err != nil {
			log.Debug().Err(err).Msg("bad button event")
			return
		}
		l.HandleButton(ev)
	case EventKey:
		var ev KeyEvent
		if err := json.Unmarshal(note.Data, &ev); err != nil {
			log.Debug().Err(err).Msg("bad key event")
			return
		}
		l.HandleKey(ev)
	}
}

// Run applies notifications until the channel closes, ctx is cancelled or
// shutdown is requested. All buttons are released when it returns so the
// loop never acts on a stale hold.
func (l *Listener) Run(ctx context.Context, notes <-chan plugin.Response) {
	defer l.releaseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.state.Done():
			return
		case note, ok := <-notes:
			if !ok {
				log.Warn().Msg("input listener source closed")
				return
			}
			l.Handle(note)
		}
	}
}

func (l *Listener) releaseAll() {
	for b := Button(0); b < numButtons; b++ {
		l.state.Set(b, false)
	}
}
