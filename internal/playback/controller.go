package playback

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Max-Kushnir/playlister/internal/player"
	"github.com/Max-Kushnir/playlister/internal/telemetry"
)

// Options configures a Controller
type Options struct {
	Backend   player.Backend
	Container string            // player container name
	Emitter   telemetry.Emitter // telemetry sink, nil to discard
	SessionID string            // generated when empty
	Logger    zerolog.Logger
}

// item is one mailbox entry: a player event or a command
type item struct {
	event *player.Event
	cmd   func(*Machine) error
	reply chan error // nil for fire-and-forget commands
}

// Controller owns one playback session. UI commands and player events are
// queued in a single mailbox and applied to the Machine one at a time on
// the controller's own goroutine.
type Controller struct {
	id      string
	adapter *player.Adapter
	machine *Machine
	logger  zerolog.Logger

	mu      sync.Mutex
	queue   []item
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	closeOnce sync.Once

	subsMu sync.Mutex
	subs   []chan Snapshot
	latest Snapshot
	hooks  []func(playlistID int64)
}

// NewController creates a controller and starts its loop. Call Close to
// release the player.
func NewController(opts Options) *Controller {
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = discard{}
	}

	logger := opts.Logger.With().Str("component", "controller").Str("session", id).Logger()

	c := &Controller{
		id:     id,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	c.adapter = player.NewAdapter(opts.Backend, opts.Container, c, opts.Logger.With().Str("session", id).Logger())
	c.machine = NewMachine(c.adapter, telemetry.NewGate(emitter), logger)
	c.latest = c.snapshot()

	go c.loop()
	return c
}

// ID returns the session id
func (c *Controller) ID() string {
	return c.id
}

// Post receives adapter events. It never blocks.
func (c *Controller) Post(ev player.Event) {
	c.enqueue(item{event: &ev})
}

// Open opens pl in this session. The player is created on the first Open of
// a non-empty playlist; if that fails the session stays open but inert and
// the error is returned and reported in the snapshot.
func (c *Controller) Open(ctx context.Context, pl Playlist) error {
	return c.run(func(m *Machine) error {
		if m.Closed() {
			return ErrSessionClosed
		}
		if !pl.Tracks.IsEmpty() && !c.adapter.Initialized() {
			first, _ := pl.Tracks.At(0)
			if err := c.adapter.Initialize(ctx, first); err != nil {
				c.logger.Error().Err(err).Msg("Player unavailable")
				m.OpenInert(pl, err)
				return err
			}
		}
		return m.Open(pl)
	})
}

// Next loads the next track, wrapping to the first
func (c *Controller) Next() error {
	return c.run(func(m *Machine) error { return m.Next() })
}

// Previous loads the previous track, wrapping to the last
func (c *Controller) Previous() error {
	return c.run(func(m *Machine) error { return m.Previous() })
}

// TogglePlayPause pauses or resumes the current track
func (c *Controller) TogglePlayPause() error {
	return c.run(func(m *Machine) error { return m.TogglePlayPause() })
}

// SelectTrack loads the track at index i
func (c *Controller) SelectTrack(i int) error {
	return c.run(func(m *Machine) error { return m.Select(i) })
}

// SetRepeat sets the repeat flag
func (c *Controller) SetRepeat(on bool) error {
	return c.run(func(m *Machine) error { return m.SetRepeat(on) })
}

// NotifyNewListener reports that the service counted this session as a new
// listener. It is safe to call from any goroutine and never blocks.
func (c *Controller) NotifyNewListener(playlistID int64) {
	c.enqueue(item{cmd: func(m *Machine) error {
		m.MarkNewListener()
		c.subsMu.Lock()
		hooks := append([]func(int64){}, c.hooks...)
		c.subsMu.Unlock()
		for _, fn := range hooks {
			fn(playlistID)
		}
		return nil
	}})
}

// OnNewListener registers fn to run on the session goroutine when a new
// listener is reported. fn must not call back into the controller's
// command methods.
func (c *Controller) OnNewListener(fn func(playlistID int64)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Snapshot returns the latest published state
func (c *Controller) Snapshot() Snapshot {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return c.latest
}

// Subscribe returns a channel carrying the latest snapshot. Intermediate
// snapshots are skipped when the reader falls behind. The channel is closed
// when the session closes.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	ch <- c.latest
	if c.latest.Closed {
		close(ch)
		return ch
	}
	c.subs = append(c.subs, ch)
	return ch
}

// Close destroys the player and stops the session. It is safe to call any
// number of times from any state.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		_ = c.run(func(m *Machine) error {
			if err := c.adapter.Destroy(); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to destroy player")
			}
			m.Close()
			c.logger.Info().Msg("Session closed")
			return nil
		})

		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		c.signal()
		<-c.done

		c.subsMu.Lock()
		for _, ch := range c.subs {
			close(ch)
		}
		c.subs = nil
		c.subsMu.Unlock()
	})
	return nil
}

// run queues cmd and waits for the loop to apply it
func (c *Controller) run(cmd func(*Machine) error) error {
	reply := make(chan error, 1)
	if !c.enqueue(item{cmd: cmd, reply: reply}) {
		return ErrSessionClosed
	}
	return <-reply
}

func (c *Controller) enqueue(it item) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, it)
	c.mu.Unlock()

	c.signal()
	return true
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) loop() {
	defer close(c.done)

	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				stopped := c.stopped
				c.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			it := c.queue[0]
			c.queue[0] = item{}
			c.queue = c.queue[1:]
			c.mu.Unlock()

			c.apply(it)
		}
	}
}

func (c *Controller) apply(it item) {
	if it.event != nil {
		ev := *it.event
		if ev.Session != c.adapter.Session() {
			c.logger.Debug().Uint64("event_session", ev.Session).Msg("Ignoring event from stale player")
			return
		}
		c.machine.HandleEvent(ev)
	} else {
		err := it.cmd(c.machine)
		if it.reply != nil {
			it.reply <- err
		}
	}
	c.publish()
}

func (c *Controller) snapshot() Snapshot {
	s := c.machine.Snapshot()
	s.SessionID = c.id
	return s
}

// publish stores the machine's state and offers it to subscribers. Only
// the loop goroutine calls it, so the drain-then-send below cannot race
// with another sender.
func (c *Controller) publish() {
	s := c.snapshot()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.latest = s
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

type discard struct{}

func (discard) EmitListener(int64) {}
func (discard) EmitListen(int64)   {}
