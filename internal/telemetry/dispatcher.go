package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBuffer  = 64
	journalTimeout = 2 * time.Second
)

// Recorder is the remote end of telemetry. *catalog.Client implements it.
type Recorder interface {
	RecordPlaylistListener(ctx context.Context, playlistID int64, listenerIdentifier string) (bool, error)
	RecordTrackListen(ctx context.Context, songID int64) error
}

// EventLog receives one entry per delivered or failed call. *Journal
// implements it.
type EventLog interface {
	Add(ctx context.Context, e Entry) (int64, error)
}

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	Recorder   Recorder
	ListenerID string // sent with listener calls
	SessionID  string // stamped on journal entries
	Timeout    time.Duration
	Buffer     int
	Journal    EventLog // optional
	Logger     zerolog.Logger

	// OnNewListener is called from the worker when the service reports
	// that the listener call created a new listener.
	OnNewListener func(playlistID int64)
}

// Stats counts dispatcher outcomes
type Stats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

type job struct {
	kind Kind
	id   int64
}

// Dispatcher delivers telemetry in order on a single background worker so
// emitting never blocks the playback loop. Failed calls are logged and
// journaled, never retried.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger zerolog.Logger
	jobs   chan job
	done   chan struct{}

	mu     sync.Mutex
	closed bool

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts a dispatcher worker
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "telemetry").Logger(),
		jobs:   make(chan job, cfg.Buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// EmitListener queues a listener call for playlistID
func (d *Dispatcher) EmitListener(playlistID int64) {
	d.enqueue(job{kind: KindListener, id: playlistID})
}

// EmitListen queues a listen call for trackID
func (d *Dispatcher) EmitListen(trackID int64) {
	d.enqueue(job{kind: KindListen, id: trackID})
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.Debug().Str("kind", string(j.kind)).Int64("id", j.id).Msg("Dispatcher closed, dropping telemetry")
		return
	}

	select {
	case d.jobs <- j:
	default:
		d.dropped.Add(1)
		d.logger.Warn().Str("kind", string(j.kind)).Int64("id", j.id).Msg("Telemetry buffer full, dropping")
	}
}

// Close stops accepting new jobs and waits for queued ones to be delivered
// or for ctx to expire. Calling Close more than once is safe.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns counters for this dispatcher
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	var err error
	switch j.kind {
	case KindListener:
		var isNew bool
		isNew, err = d.cfg.Recorder.RecordPlaylistListener(ctx, j.id, d.cfg.ListenerID)
		if err == nil {
			d.logger.Info().Int64("playlist", j.id).Bool("new_listener", isNew).Msg("Listener recorded")
			if isNew && d.cfg.OnNewListener != nil {
				d.cfg.OnNewListener(j.id)
			}
		}
	case KindListen:
		err = d.cfg.Recorder.RecordTrackListen(ctx, j.id)
		if err == nil {
			d.logger.Info().Int64("track", j.id).Msg("Listen recorded")
		}
	default:
		err = errors.New("unknown telemetry kind")
	}

	entry := Entry{
		SessionID: d.cfg.SessionID,
		Kind:      j.kind,
		SubjectID: j.id,
		Delivered: err == nil,
	}

	if err != nil {
		d.failed.Add(1)
		terr := &TelemetryError{Kind: j.kind, ID: j.id, Err: err}
		d.logger.Warn().Err(terr).Msg("Telemetry call failed")
		entry.Error = err.Error()
	} else {
		d.sent.Add(1)
	}

	d.journal(entry)
}

func (d *Dispatcher) journal(e Entry) {
	if d.cfg.Journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if _, err := d.cfg.Journal.Add(ctx, e); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to journal telemetry event")
	}
}
