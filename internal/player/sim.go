package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	simReadyDelay = 50 * time.Millisecond
	simLoadDelay  = 20 * time.Millisecond

	// simErrInvalidRef is reported for an empty media ref.
	simErrInvalidRef = 2
)

// SimBackend returns a backend for the in-process simulated player. It needs
// no library and plays every track for trackLength.
func SimBackend(trackLength time.Duration, logger zerolog.Logger) Backend {
	if trackLength <= 0 {
		trackLength = 30 * time.Second
	}
	logger = logger.With().Str("component", "sim").Logger()
	return Backend{
		Name: "sim",
		New: func(ctx context.Context, cfg DriverConfig, cb Callbacks) (Driver, error) {
			return newSimDriver(cfg, cb, trackLength, logger), nil
		},
	}
}

// simDriver reports the same event sequence a real player would:
// ready, buffering, playing, then ended after the track length.
type simDriver struct {
	cb          Callbacks
	trackLength time.Duration
	logger      zerolog.Logger

	mu        sync.Mutex
	ref       string
	started   bool          // current ref has been loaded
	playing   bool
	remaining time.Duration // time left in the current track
	resumedAt time.Time
	timer     *time.Timer
	token     uint64 // bumped on every transition to invalidate timers
	closed    bool
}

func newSimDriver(cfg DriverConfig, cb Callbacks, trackLength time.Duration, logger zerolog.Logger) *simDriver {
	d := &simDriver{
		cb:          cb,
		trackLength: trackLength,
		logger:      logger,
		ref:         cfg.InitialRef,
	}
	d.timer = time.AfterFunc(simReadyDelay, func() {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if !closed {
			cb.OnReady()
		}
	})
	return d
}

func (d *simDriver) Play() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	if !d.started {
		ref := d.ref
		d.mu.Unlock()
		return d.LoadMedia(ref)
	}
	if d.playing {
		d.mu.Unlock()
		return nil
	}
	d.playing = true
	d.resumedAt = time.Now()
	d.token++
	tok, ref, remaining := d.token, d.ref, d.remaining
	d.mu.Unlock()

	d.cb.OnStateChange(CodePlaying, ref)
	d.schedule(tok, remaining, func() { d.finish(tok) })
	return nil
}

func (d *simDriver) Pause() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	if !d.playing {
		d.mu.Unlock()
		return nil
	}
	d.playing = false
	d.remaining -= time.Since(d.resumedAt)
	if d.remaining < 0 {
		d.remaining = 0
	}
	d.token++
	ref := d.ref
	d.mu.Unlock()

	d.cb.OnStateChange(CodePaused, ref)
	return nil
}

func (d *simDriver) LoadMedia(ref string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	d.ref = ref
	d.started = true
	d.playing = false
	d.remaining = d.trackLength
	d.token++
	tok := d.token
	d.mu.Unlock()

	if ref == "" {
		d.cb.OnError(simErrInvalidRef, ref)
		return nil
	}

	d.logger.Debug().Str("media", ref).Msg("Loading")
	d.cb.OnStateChange(CodeBuffering, ref)
	d.schedule(tok, simLoadDelay, func() {
		d.mu.Lock()
		if d.closed || d.token != tok {
			d.mu.Unlock()
			return
		}
		d.playing = true
		d.resumedAt = time.Now()
		d.mu.Unlock()

		d.cb.OnStateChange(CodePlaying, ref)
		d.schedule(tok, d.trackLength, func() { d.finish(tok) })
	})
	return nil
}

func (d *simDriver) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.token++
	if d.timer != nil {
		d.timer.Stop()
	}
	return nil
}

func (d *simDriver) schedule(tok uint64, after time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.token != tok {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(after, fn)
}

func (d *simDriver) finish(tok uint64) {
	d.mu.Lock()
	if d.closed || d.token != tok || !d.playing {
		d.mu.Unlock()
		return
	}
	// Play after the end restarts the track.
	d.playing = false
	d.started = false
	d.remaining = 0
	ref := d.ref
	d.mu.Unlock()

	d.cb.OnStateChange(CodeEnded, ref)
}
