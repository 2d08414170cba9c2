// Package app wires the capture, detection and actuation components into a
// running Reticle process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/actuator"
	"github.com/ayusman/reticle/internal/capture"
	"github.com/ayusman/reticle/internal/config"
	"github.com/ayusman/reticle/internal/detector"
	"github.com/ayusman/reticle/internal/input"
	"github.com/ayusman/reticle/internal/monitor"
	"github.com/ayusman/reticle/internal/plugin"
	"github.com/ayusman/reticle/internal/server"
	"github.com/ayusman/reticle/internal/store"
	"github.com/ayusman/reticle/internal/tray"
)

const (
	// JournalInterval is how often session counters are written to the store.
	JournalInterval = 5 * time.Second
	// pingTimeout bounds the actuator health check at startup.
	pingTimeout = 2 * time.Second
)

// Options adjust a run. Source, Detector and Sink replace the configured
// adapters when set.
type Options struct {
	Profile   string
	Mode      string
	NoTray    bool
	NoServer  bool
	StaticDir string

	Source   capture.Source
	Detector detector.Detector
	Sink     actuator.Sink
}

// App owns every long-lived component of a run.
type App struct {
	config  *config.Config
	opts    Options
	tuning  config.Tuning
	profile string

	store   *store.Store
	plugins *plugin.Manager
	state   *input.State
	hub     *monitor.Hub

	actuatorSink *actuator.PluginSink
	listenerProc *plugin.Process
	listener     *input.Listener

	source     capture.Source
	gate       *capture.ChangeGate
	detector   detector.Detector
	controller *actuator.Controller
	loop       *Loop
	server     *server.Server
	tray       *tray.Tray

	session *store.Session
}

// New creates an App. Nothing is opened until Open.
func New(cfg *config.Config, opts Options) *App {
	return &App{
		config:  cfg,
		opts:    opts,
		tuning:  cfg.Tuning,
		plugins: plugin.NewManager(cfg.PluginDir),
		state:   input.NewState(),
		hub:     monitor.NewHub(),
	}
}

// ResolveTuning overlays the named profile on base. An empty name falls
// back to the stored active profile, and then to base itself.
func ResolveTuning(st *store.Store, base config.Tuning, name string) (config.Tuning, string, error) {
	if name == "" {
		active, err := st.Settings().Get(store.SettingActiveProfile)
		if errors.Is(err, store.ErrNotFound) {
			return base, "", nil
		}
		if err != nil {
			return base, "", fmt.Errorf("read active profile: %w", err)
		}
		name = active
	}

	p, err := st.Profiles().GetByName(name)
	if err != nil {
		return base, "", fmt.Errorf("profile %q: %w", name, err)
	}

	tuning, err := base.Overlay(p.Settings)
	if err != nil {
		return base, "", fmt.Errorf("profile %q: %w", name, err)
	}
	if err := tuning.Validate(); err != nil {
		return base, "", fmt.Errorf("profile %q: %w", name, err)
	}
	return tuning, p.Name, nil
}

// Open opens the store, resolves the tuning, starts plugins and prepares
// the capture and inference adapters. Close releases whatever Open acquired,
// even after a partial failure.
func (a *App) Open() error {
	st, err := store.New(a.config.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = st

	a.tuning, a.profile, err = ResolveTuning(st, a.config.Tuning, a.opts.Profile)
	if err != nil {
		return err
	}
	if a.opts.Mode != "" {
		mode, err := config.ParseMode(a.opts.Mode)
		if err != nil {
			return err
		}
		a.tuning.TriggerBotMode = mode == config.ModeTrigger
	}

	if err := a.plugins.Discover(); err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}

	sink := a.opts.Sink
	if sink == nil {
		sink = a.startActuator()
	}
	a.startListener()

	if err := a.openCapture(); err != nil {
		return err
	}
	if err := a.openDetector(); err != nil {
		return err
	}

	a.controller = actuator.NewController(
		actuator.Gains{Kp: a.tuning.Kp, Ki: a.tuning.Ki, Kd: a.tuning.Kd},
		a.tuning.MaxSpeed,
		sink,
	)
	a.loop = NewLoop(LoopConfig{
		Tuning:       a.tuning,
		Profile:      a.profile,
		ScreenWidth:  a.config.ScreenWidth,
		ScreenHeight: a.config.ScreenHeight,
		CaptureFPS:   a.config.CaptureFPS,
		IdleFPS:      a.config.IdleFPS,
	}, a.source, a.gate, a.detector, a.controller, a.state, a.hub)

	if !a.opts.NoServer {
		a.server = server.New(server.Config{
			StaticDir: a.opts.StaticDir,
			Store:     a.store,
			Hub:       a.hub,
			Arm:       a.loop,
			Plugins:   a.plugins,
		})
	}

	if a.config.Tray && !a.opts.NoTray {
		a.tray = tray.New(a.loop, string(a.loop.Mode()), a.profile)
		a.tray.OnQuit(a.state.RequestShutdown)
	}

	a.session = &store.Session{
		ID:      uuid.New().String(),
		Profile: a.profile,
		Mode:    string(a.loop.Mode()),
	}
	if err := st.Sessions().Start(a.session); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	log.Info().
		Str("mode", string(a.loop.Mode())).
		Str("profile", a.profile).
		Str("session", a.session.ID).
		Msg("reticle ready")
	return nil
}

// startActuator starts the configured actuator plugin. Without one the run
// is dry: moves and clicks are only logged.
func (a *App) startActuator() actuator.Sink {
	p, err := a.plugins.Lookup(a.config.ActuatorPlugin, plugin.KindActuator)
	if err != nil {
		log.Warn().Err(err).Msg("no actuator plugin, running dry")
		return actuator.NopSink{}
	}

	proc, err := plugin.Start(p)
	if err != nil {
		log.Warn().Err(err).Msg("actuator plugin failed to start, running dry")
		return actuator.NopSink{}
	}
	sink := actuator.NewPluginSink(proc)
	a.actuatorSink = sink
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sink.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("plugin", p.Manifest.Name).Msg("actuator plugin is not healthy")
	}
	return sink
}

// startListener starts the configured input listener plugin. Without one
// every button reads as released.
func (a *App) startListener() {
	p, err := a.plugins.Lookup(a.config.ListenerPlugin, plugin.KindListener)
	if err != nil {
		log.Warn().Err(err).Msg("no input listener plugin, buttons will read as released")
		return
	}

	proc, err := plugin.Start(p)
	if err != nil {
		log.Warn().Err(err).Msg("input listener plugin failed to start")
		return
	}
	a.listenerProc = proc
	a.listener = input.NewListener(a.state, a.config.PanicKey)
}

func (a *App) openCapture() error {
	a.source = a.opts.Source
	if a.source == nil {
		a.source = capture.NewSource(a.config.CaptureSource, a.config.ScreenWidth, a.config.ScreenHeight)
	}
	if err := a.source.Open(); err != nil {
		return fmt.Errorf("open capture %q: %w", a.config.CaptureSource, err)
	}
	a.source.SetFPS(a.config.IdleFPS)
	a.gate = capture.NewChangeGate(a.config.ChangeThreshold)
	return nil
}

func (a *App) openDetector() error {
	a.detector = a.opts.Detector
	if a.detector != nil {
		return nil
	}

	cfg := detector.DefaultConfig()
	cfg.ModelPath = a.config.ModelPath
	cfg.InputSize = a.config.InputSize
	cfg.ConfThreshold = a.tuning.ConfThreshold

	d, err := detector.NewYOLODetector(cfg)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	a.detector = d
	return nil
}

// Run runs the control loop, listener, journal and server until ctx is
// cancelled or shutdown is requested, then shuts everything down in order.
// With the tray enabled Run must be called from the main goroutine.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("app not open")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-a.state.Done():
			log.Info().Msg("shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	var serverErr error

	if a.listenerProc != nil {
		notes := a.listenerProc.Notifications()
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.listener.Run(ctx, notes)
		}()
	}

	if a.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Run(ctx, a.config.ServerAddr); err != nil {
				serverErr = err
				log.Error().Err(err).Msg("http server failed")
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.journal(ctx)
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(ctx)
		cancel()
	}()

	if a.tray != nil {
		a.tray.Run(ctx)
		cancel()
	}

	<-loopDone
	a.stopListener()
	wg.Wait()

	return serverErr
}

// journal periodically writes the session counters.
func (a *App) journal(ctx context.Context) {
	ticker := time.NewTicker(JournalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.fillSession()
			if err := a.store.Sessions().Record(a.session); err != nil {
				log.Warn().Err(err).Msg("failed to record session")
			}
		}
	}
}

func (a *App) fillSession() {
	c := a.loop.Counters()
	s := a.controller.Stats()
	a.session.Frames = c.Frames
	a.session.Inferences = c.Inferences
	a.session.Moves = s.Moves
	a.session.Clicks = s.Clicks
	a.session.Errors = c.Errors + s.Failures
}

func (a *App) stopListener() {
	if a.listenerProc == nil {
		return
	}
	if err := a.listenerProc.Close(); err != nil {
		log.Debug().Err(err).Msg("listener plugin exit")
	}
	a.listenerProc = nil
}

// Close releases everything in shutdown order: listener, actuator, session
// record, adapters, then the store.
func (a *App) Close() error {
	a.stopListener()

	if a.actuatorSink != nil {
		if err := a.actuatorSink.Close(); err != nil {
			log.Debug().Err(err).Msg("actuator plugin exit")
		}
		a.actuatorSink = nil
	}

	if a.session != nil && a.store != nil {
		a.fillSession()
		if err := a.store.Sessions().End(a.session); err != nil {
			log.Warn().Err(err).Msg("failed to end session")
		}
		log.Info().
			Uint64("frames", a.session.Frames).
			Uint64("moves", a.session.Moves).
			Uint64("clicks", a.session.Clicks).
			Uint64("errors", a.session.Errors).
			Msg("session ended")
		a.session = nil
	}

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing capture")
		}
	}
	if a.gate != nil {
		a.gate.Close()
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing detector")
		}
	}

	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

// State returns the shared input state.
func (a *App) State() *input.State {
	return a.state
}

// Loop returns the control loop, or nil before Open.
func (a *App) Loop() *Loop {
	return a.loop
}

// Hub returns the monitor hub.
func (a *App) Hub() *monitor.Hub {
	return a.hub
}

// Tuning returns the resolved tuning.
func (a *App) Tuning() config.Tuning {
	return a.tuning
}

// Session returns the current session record, or nil when none is open.
func (a *App) Session() *store.Session {
	return a.session
}
