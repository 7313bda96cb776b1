package playback

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/Max-Kushnir/playlister/internal/player"
	"github.com/Max-Kushnir/playlister/internal/telemetry"
	"github.com/Max-Kushnir/playlister/internal/tracklist"
)

// Player is the imperative side of the player adapter
type Player interface {
	Load(t tracklist.Track) error
	Play() error
	Pause() error
}

// Machine is the playback state of one session. It applies commands and
// player events one at a time and is not safe for concurrent use; the
// Controller's loop is its only caller.
type Machine struct {
	player Player
	gate   *telemetry.Gate
	logger zerolog.Logger

	playlist    Playlist
	phase       Phase
	index       int
	repeat      bool
	loads       int
	err         error
	newListener bool
	closed      bool
}

// NewMachine returns an empty machine
func NewMachine(p Player, gate *telemetry.Gate, logger zerolog.Logger) *Machine {
	return &Machine{
		player: p,
		gate:   gate,
		logger: logger,
		phase:  PhaseEmpty,
		index:  -1,
	}
}

// Open starts the session on pl. The listener is recorded on the first Open
// only. A non-empty playlist starts loading its first track.
func (m *Machine) Open(pl Playlist) error {
	if m.closed {
		return ErrSessionClosed
	}

	m.playlist = pl
	m.err = nil
	m.gate.RecordListenerOnce(pl.ID)

	if pl.Tracks.IsEmpty() {
		m.phase = PhaseEmpty
		m.index = -1
		m.logger.Info().Int64("playlist", pl.ID).Msg("Opened empty playlist")
		return nil
	}

	m.logger.Info().Int64("playlist", pl.ID).Int("tracks", pl.Tracks.Len()).Msg("Opened playlist")
	return m.goTo(0)
}

// OpenInert opens pl without a usable player. The tracks are visible but
// nothing can be played; cause is reported in the snapshot.
func (m *Machine) OpenInert(pl Playlist, cause error) {
	if m.closed {
		return
	}
	m.playlist = pl
	m.gate.RecordListenerOnce(pl.ID)
	m.phase = PhaseEmpty
	m.index = -1
	m.err = cause
}

// HandleEvent applies a player event
func (m *Machine) HandleEvent(ev player.Event) {
	if m.closed || m.phase == PhaseEmpty {
		m.logger.Debug().Stringer("kind", ev.Kind).Msg("Ignoring player event")
		return
	}

	current, _ := m.playlist.Tracks.At(m.index)
	if ev.MediaRef != "" && ev.MediaRef != current.MediaRef {
		m.logger.Debug().Str("media", ev.MediaRef).Msg("Ignoring event for another track")
		return
	}

	switch ev.Kind {
	case player.EventReady:
		m.logger.Debug().Msg("Player ready")

	case player.EventError:
		m.err = &LoadError{Index: m.index, TrackID: current.ID, Err: ev.Err}
		m.logger.Error().Err(m.err).Msg("Playback error")

	case player.EventStateChange:
		m.handleState(ev.State, current)
	}
}

func (m *Machine) handleState(state player.State, current tracklist.Track) {
	switch state {
	case player.StatePlaying:
		m.phase = PhasePlaying
		m.err = nil
		if m.gate.RecordTrackListen(current.ID) {
			m.logger.Info().Int64("track", current.ID).Str("title", current.Title).Msg("Counting listen")
		}

	case player.StatePaused:
		m.phase = PhasePaused

	case player.StateEnded:
		res := ResolveNext(m.index, m.playlist.Tracks.Len(), m.repeat)
		if res.Action == Stop {
			m.phase = PhasePaused
			m.logger.Info().Msg("Reached end of playlist")
			return
		}
		_ = m.goTo(res.Index)

	case player.StateBuffering, player.StateUnstarted:
	}
}

// Next loads the following track, wrapping to the first
func (m *Machine) Next() error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.phase == PhaseEmpty {
		return nil
	}
	return m.goTo(WrapNext(m.index, m.playlist.Tracks.Len()))
}

// Previous loads the preceding track, wrapping to the last
func (m *Machine) Previous() error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.phase == PhaseEmpty {
		return nil
	}
	return m.goTo(WrapPrevious(m.index, m.playlist.Tracks.Len()))
}

// Select loads the track at i
func (m *Machine) Select(i int) error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.phase == PhaseEmpty {
		return nil
	}
	if i < 0 || i >= m.playlist.Tracks.Len() {
		return ErrIndexOutOfRange
	}
	return m.goTo(i)
}

// TogglePlayPause pauses a playing track or resumes a paused one. The phase
// changes when the player reports back.
func (m *Machine) TogglePlayPause() error {
	if m.closed {
		return ErrSessionClosed
	}
	switch m.phase {
	case PhasePlaying:
		return m.player.Pause()
	case PhasePaused:
		return m.player.Play()
	default:
		return ErrNotPlayable
	}
}

// SetRepeat sets the repeat flag
func (m *Machine) SetRepeat(on bool) error {
	if m.closed {
		return ErrSessionClosed
	}
	m.repeat = on
	return nil
}

// MarkNewListener records that the service counted a new listener
func (m *Machine) MarkNewListener() {
	m.newListener = true
}

// Close ends the session. Every later operation fails or is ignored.
func (m *Machine) Close() {
	m.closed = true
}

// Closed reports whether Close was called
func (m *Machine) Closed() bool {
	return m.closed
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	return m.phase
}

// Index returns the current index, or -1
func (m *Machine) Index() int {
	return m.index
}

// isPlaying reports whether playback is running or about to. A load that
// failed leaves the session stalled in Loading, which does not count.
func (m *Machine) isPlaying() bool {
	if m.closed {
		return false
	}
	switch m.phase {
	case PhasePlaying:
		return true
	case PhaseLoading:
		var loadErr *LoadError
		return !errors.As(m.err, &loadErr)
	default:
		return false
	}
}

func (m *Machine) goTo(i int) error {
	track, _ := m.playlist.Tracks.At(i)
	m.phase = PhaseLoading
	m.index = i
	m.loads++
	m.err = nil

	m.logger.Info().Int("index", i).Str("track", track.String()).Msg("Loading track")

	if err := m.player.Load(track); err != nil {
		m.err = &LoadError{Index: i, TrackID: track.ID, Err: err}
		m.logger.Error().Err(m.err).Msg("Failed to load track")
		return m.err
	}
	return nil
}

// Snapshot returns a read-only view of the session
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		PlaylistID:   m.playlist.ID,
		PlaylistName: m.playlist.Name,
		Owner:        m.playlist.Owner,
		Phase:        m.phase,
		CurrentIndex: m.index,
		IsPlaying:    m.isPlaying(),
		Repeat:       m.repeat,
		Tracks:       m.playlist.Tracks.Tracks(),
		Err:          m.err,
		Listens:      m.gate.Listens(),
		NewListener:  m.newListener,
		Loads:        m.loads,
		Closed:       m.closed,
	}
	if t, ok := m.playlist.Tracks.At(m.index); ok {
		s.CurrentTrack = &t
	}
	return s
}
