package player

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Max-Kushnir/playlister/internal/tracklist"
)

// sessions hands out adapter generations. Zero means "never initialized".
var sessions atomic.Uint64

// Adapter owns one driver instance and turns its callbacks into Events.
//
// The mutex only guards adapter fields. It is never held while calling into
// the driver or the sink, so drivers may call back synchronously.
type Adapter struct {
	backend Backend
	cfg     DriverConfig
	sink    Sink
	logger  zerolog.Logger

	mu         sync.Mutex
	session    uint64
	driver     Driver
	ready      bool
	destroyed  bool
	initialRef string
	current    string // most recently requested media
	pending    string // requested before ready, loaded on ready
}

// NewAdapter creates an adapter. Nothing is started until Initialize.
func NewAdapter(backend Backend, container string, sink Sink, logger zerolog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		cfg:     DriverConfig{Container: container},
		sink:    sink,
		logger:  logger.With().Str("component", "player").Str("driver", backend.Name).Logger(),
	}
}

// Initialize waits for the backend library and constructs the driver with
// initial as its first media. Calling it again after success is a no-op.
func (a *Adapter) Initialize(ctx context.Context, initial tracklist.Track) error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.driver != nil {
		a.mu.Unlock()
		return nil
	}
	gen := sessions.Add(1)
	a.session = gen
	a.ready = false
	a.initialRef = initial.MediaRef
	a.current = initial.MediaRef
	a.pending = ""
	cfg := a.cfg
	cfg.InitialRef = initial.MediaRef
	a.mu.Unlock()

	EnsureLibrary(a.backend.Name, a.backend.Prepare)
	if err := WaitLibrary(ctx, a.backend.Name); err != nil {
		a.logger.Error().Err(err).Msg("Player library failed to load")
		return &AdapterInitError{Driver: a.backend.Name, Err: err}
	}

	drv, err := a.backend.New(ctx, cfg, Callbacks{
		OnReady:       func() { a.onReady(gen) },
		OnStateChange: func(code int, ref string) { a.onStateChange(gen, code, ref) },
		OnError:       func(code int, ref string) { a.onError(gen, code, ref) },
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to create player")
		return &AdapterInitError{Driver: a.backend.Name, Err: err}
	}

	a.mu.Lock()
	if a.destroyed || a.session != gen {
		a.mu.Unlock()
		_ = drv.Destroy()
		return ErrDestroyed
	}
	a.driver = drv
	readyEarly := a.ready
	pending := a.pending
	a.pending = ""
	a.mu.Unlock()

	a.logger.Debug().Uint64("session", gen).Str("media", cfg.InitialRef).Msg("Player created")

	if readyEarly {
		a.startPlayback(gen, drv, pending)
	}
	return nil
}

// Session returns the current generation, or 0 before Initialize.
func (a *Adapter) Session() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Initialized reports whether a driver exists.
func (a *Adapter) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.driver != nil
}

// Ready reports whether the driver has signalled readiness.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready && a.driver != nil
}

// Load switches to t. Before the player is ready the request is kept as
// pending (latest wins) and loaded when ready fires.
func (a *Adapter) Load(t tracklist.Track) error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.session == 0 {
		a.mu.Unlock()
		return ErrNotInitialized
	}
	a.current = t.MediaRef
	if a.driver == nil || !a.ready {
		if t.MediaRef == a.initialRef {
			a.pending = ""
		} else {
			a.pending = t.MediaRef
		}
		a.mu.Unlock()
		a.logger.Debug().Str("media", t.MediaRef).Msg("Player not ready, load deferred")
		return nil
	}
	drv := a.driver
	a.mu.Unlock()

	return drv.LoadMedia(t.MediaRef)
}

// Play resumes playback.
func (a *Adapter) Play() error {
	drv, err := a.readyDriver()
	if err != nil {
		return err
	}
	return drv.Play()
}

// Pause pauses playback.
func (a *Adapter) Pause() error {
	drv, err := a.readyDriver()
	if err != nil {
		return err
	}
	return drv.Pause()
}

// Destroy releases the driver. Later callbacks are dropped and later calls
// return ErrDestroyed. Destroy is idempotent.
func (a *Adapter) Destroy() error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil
	}
	a.destroyed = true
	drv := a.driver
	a.driver = nil
	a.mu.Unlock()

	if drv == nil {
		return nil
	}
	a.logger.Debug().Msg("Destroying player")
	return drv.Destroy()
}

func (a *Adapter) readyDriver() (Driver, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return nil, ErrDestroyed
	}
	if a.driver == nil || !a.ready {
		return nil, ErrNotInitialized
	}
	return a.driver, nil
}

func (a *Adapter) onReady(gen uint64) {
	a.mu.Lock()
	if a.destroyed || gen != a.session || a.ready {
		a.mu.Unlock()
		return
	}
	a.ready = true
	drv := a.driver
	if drv == nil {
		// Initialize finishes the ready sequence once the driver is stored.
		a.mu.Unlock()
		return
	}
	pending := a.pending
	a.pending = ""
	a.mu.Unlock()

	a.startPlayback(gen, drv, pending)
}

// startPlayback runs the ready sequence: load whatever was requested while
// the player was starting, otherwise autoplay the initial media.
func (a *Adapter) startPlayback(gen uint64, drv Driver, pending string) {
	a.logger.Debug().Uint64("session", gen).Msg("Player ready")
	a.sink.Post(Event{Session: gen, Kind: EventReady})

	var err error
	if pending != "" {
		err = drv.LoadMedia(pending)
	} else {
		err = drv.Play()
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to start playback on ready")
	}
}

// accept reports whether a callback for ref from generation gen is current.
// An empty ref refers to whatever is current.
func (a *Adapter) accept(gen uint64, ref string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed || gen != a.session {
		return "", false
	}
	if ref == "" {
		return a.current, true
	}
	return ref, ref == a.current
}

func (a *Adapter) onStateChange(gen uint64, code int, ref string) {
	ref, ok := a.accept(gen, ref)
	if !ok {
		a.logger.Debug().Int("code", code).Str("media", ref).Msg("Dropping stale state change")
		return
	}

	state, known := TranslateCode(code)
	if !known {
		a.logger.Debug().Int("code", code).Msg("Ignoring unknown player state")
		return
	}

	a.sink.Post(Event{Session: gen, Kind: EventStateChange, State: state, MediaRef: ref})
}

func (a *Adapter) onError(gen uint64, code int, ref string) {
	ref, ok := a.accept(gen, ref)
	if !ok {
		a.logger.Debug().Int("code", code).Str("media", ref).Msg("Dropping stale player error")
		return
	}

	a.sink.Post(Event{
		Session:  gen,
		Kind:     EventError,
		MediaRef: ref,
		Err:      &CodeError{Code: code, MediaRef: ref},
	})
}
