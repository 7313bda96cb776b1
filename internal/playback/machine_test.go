package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Max-Kushnir/playlister/internal/player"
	"github.com/Max-Kushnir/playlister/internal/telemetry"
	"github.com/Max-Kushnir/playlister/internal/tracklist"
)

type fakePlayer struct {
	calls   []string
	loadErr error
}

func (f *fakePlayer) Load(t tracklist.Track) error {
	f.calls = append(f.calls, "load:"+t.MediaRef)
	return f.loadErr
}
func (f *fakePlayer) Play() error  { f.calls = append(f.calls, "play"); return nil }
func (f *fakePlayer) Pause() error { f.calls = append(f.calls, "pause"); return nil }

type fakeEmitter struct {
	mu        sync.Mutex
	listeners []int64
	listens   []int64
}

func (f *fakeEmitter) EmitListener(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, id)
}

func (f *fakeEmitter) EmitListen(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listens = append(f.listens, id)
}

func (f *fakeEmitter) Listeners() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.listeners...)
}

func (f *fakeEmitter) Listens() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.listens...)
}

func threeTracks() Playlist {
	return Playlist{
		ID:   7,
		Name: "Road Trip",
		Tracks: tracklist.New(
			tracklist.Track{ID: 101, Title: "A", MediaRef: "ref-a"},
			tracklist.Track{ID: 102, Title: "B", MediaRef: "ref-b"},
			tracklist.Track{ID: 103, Title: "C", MediaRef: "ref-c"},
		),
	}
}

func newTestMachine() (*Machine, *fakePlayer, *fakeEmitter) {
	p := &fakePlayer{}
	e := &fakeEmitter{}
	return NewMachine(p, telemetry.NewGate(e), zerolog.Nop()), p, e
}

func stateEvent(state player.State, ref string) player.Event {
	return player.Event{Kind: player.EventStateChange, State: state, MediaRef: ref}
}

func TestMachine_OpenEmpty(t *testing.T) {
	m, p, e := newTestMachine()

	require.NoError(t, m.Open(Playlist{ID: 3}))

	assert.Equal(t, PhaseEmpty, m.Phase())
	assert.Equal(t, -1, m.Index())
	assert.Equal(t, []int64{3}, e.Listeners())

	assert.NoError(t, m.Next())
	assert.NoError(t, m.Previous())
	assert.NoError(t, m.Select(0))
	assert.ErrorIs(t, m.TogglePlayPause(), ErrNotPlayable)
	assert.Empty(t, p.calls)

	snap := m.Snapshot()
	assert.Nil(t, snap.CurrentTrack)
	assert.False(t, snap.IsPlaying)
}

func TestMachine_OpenLoadsFirstTrack(t *testing.T) {
	m, p, _ := newTestMachine()

	require.NoError(t, m.Open(threeTracks()))

	assert.Equal(t, PhaseLoading, m.Phase())
	assert.Equal(t, 0, m.Index())
	assert.Equal(t, []string{"load:ref-a"}, p.calls)

	snap := m.Snapshot()
	assert.True(t, snap.IsPlaying, "loading autoplays")
	require.NotNil(t, snap.CurrentTrack)
	assert.Equal(t, int64(101), snap.CurrentTrack.ID)
	assert.Len(t, snap.Tracks, 3)
}

func TestMachine_ListenerOnceAcrossOpens(t *testing.T) {
	m, _, e := newTestMachine()

	require.NoError(t, m.Open(threeTracks()))
	require.NoError(t, m.Open(threeTracks()))

	assert.Equal(t, []int64{7}, e.Listeners())
	assert.Equal(t, 0, m.Index(), "reopen restarts at the first track")
}

func TestMachine_ListenDedup(t *testing.T) {
	m, _, e := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	// A plays, pauses, resumes: one listen.
	m.HandleEvent(stateEvent(player.StatePlaying, "ref-a"))
	m.HandleEvent(stateEvent(player.StatePaused, "ref-a"))
	m.HandleEvent(stateEvent(player.StatePlaying, "ref-a"))

	require.NoError(t, m.Next())
	m.HandleEvent(stateEvent(player.StatePlaying, "ref-b"))

	require.NoError(t, m.Previous())
	m.HandleEvent(stateEvent(player.StatePlaying, "ref-a"))

	assert.Equal(t, []int64{101, 102, 101}, e.Listens())
	assert.Equal(t, 3, m.Snapshot().Listens)
}

func TestMachine_ManualNextWrapsWithoutRepeat(t *testing.T) {
	m, p, _ := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))
	require.NoError(t, m.Select(2))

	require.NoError(t, m.Next())

	assert.Equal(t, 0, m.Index())
	assert.Equal(t, PhaseLoading, m.Phase())
	assert.Equal(t, "load:ref-a", p.calls[len(p.calls)-1])
}

func TestMachine_ManualPreviousWraps(t *testing.T) {
	m, _, _ := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	require.NoError(t, m.Previous())
	assert.Equal(t, 2, m.Index())
}

func TestMachine_NaturalEnd(t *testing.T) {
	tests := []struct {
		name      string
		repeat    bool
		wantIndex int
		wantPhase Phase
		wantLoad  bool
	}{
		{name: "stops at last without repeat", repeat: false, wantIndex: 2, wantPhase: PhasePaused},
		{name: "wraps to first with repeat", repeat: true, wantIndex: 0, wantPhase: PhaseLoading, wantLoad: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, p, _ := newTestMachine()
			require.NoError(t, m.Open(threeTracks()))
			require.NoError(t, m.SetRepeat(tt.repeat))
			require.NoError(t, m.Select(2))
			m.HandleEvent(stateEvent(player.StatePlaying, "ref-c"))
			loads := len(p.calls)

			m.HandleEvent(stateEvent(player.StateEnded, "ref-c"))

			assert.Equal(t, tt.wantIndex, m.Index())
			assert.Equal(t, tt.wantPhase, m.Phase())
			if tt.wantLoad {
				assert.Equal(t, "load:ref-a", p.calls[len(p.calls)-1])
			} else {
				assert.Len(t, p.calls, loads)
				assert.False(t, m.Snapshot().IsPlaying)
			}
		})
	}
}

func TestMachine_Walkthrough(t *testing.T) {
	m, p, e := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	for _, ref := range []string{"ref-a", "ref-b", "ref-c"} {
		m.HandleEvent(stateEvent(player.StateBuffering, ref))
		m.HandleEvent(stateEvent(player.StatePlaying, ref))
		m.HandleEvent(stateEvent(player.StateEnded, ref))
	}

	assert.Equal(t, []int64{101, 102, 103}, e.Listens())
	assert.Equal(t, []string{"load:ref-a", "load:ref-b", "load:ref-c"}, p.calls)
	assert.Equal(t, PhasePaused, m.Phase())
	assert.Equal(t, 2, m.Index())
}

func TestMachine_SingleTrackRepeatDoesNotRecount(t *testing.T) {
	m, p, e := newTestMachine()
	pl := Playlist{ID: 1, Tracks: tracklist.New(tracklist.Track{ID: 5, MediaRef: "ref-x"})}
	require.NoError(t, m.Open(pl))
	require.NoError(t, m.SetRepeat(true))

	m.HandleEvent(stateEvent(player.StatePlaying, "ref-x"))
	m.HandleEvent(stateEvent(player.StateEnded, "ref-x"))
	m.HandleEvent(stateEvent(player.StatePlaying, "ref-x"))

	assert.Equal(t, []string{"load:ref-x", "load:ref-x"}, p.calls)
	assert.Equal(t, []int64{5}, e.Listens())

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Listens)
	assert.Equal(t, 2, snap.Loads, "a replay is a new load even without a new listen")
}

func TestMachine_SelectOutOfRange(t *testing.T) {
	m, _, _ := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	assert.ErrorIs(t, m.Select(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, m.Select(-1), ErrIndexOutOfRange)
	assert.Equal(t, 0, m.Index())
}

func TestMachine_TogglePlayPause(t *testing.T) {
	m, p, _ := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	assert.ErrorIs(t, m.TogglePlayPause(), ErrNotPlayable, "loading is not toggleable")

	m.HandleEvent(stateEvent(player.StatePlaying, "ref-a"))
	require.NoError(t, m.TogglePlayPause())
	assert.Equal(t, PhasePlaying, m.Phase(), "phase follows the player, not the command")

	m.HandleEvent(stateEvent(player.StatePaused, "ref-a"))
	require.NoError(t, m.TogglePlayPause())

	assert.Equal(t, []string{"load:ref-a", "pause", "play"}, p.calls)
	assert.Equal(t, 0, m.Index())
}

func TestMachine_ErrorEvent(t *testing.T) {
	m, _, _ := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))
	require.NoError(t, m.Next())

	m.HandleEvent(player.Event{Kind: player.EventError, MediaRef: "ref-b", Err: &player.CodeError{Code: 150}})

	assert.Equal(t, PhaseLoading, m.Phase())
	var loadErr *LoadError
	require.ErrorAs(t, m.Snapshot().Err, &loadErr)
	assert.Equal(t, 1, loadErr.Index)
	assert.Equal(t, int64(102), loadErr.TrackID)
	assert.False(t, m.Snapshot().IsPlaying, "a failed load is stalled, not playing")

	require.NoError(t, m.Next())
	assert.NoError(t, m.Snapshot().Err, "navigating away clears the error")
	assert.True(t, m.Snapshot().IsPlaying)
}

func TestMachine_LoadFailure(t *testing.T) {
	m, p, _ := newTestMachine()
	p.loadErr = errors.New("player gone")

	err := m.Open(threeTracks())

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, p.loadErr)
	assert.Equal(t, PhaseLoading, m.Phase())
	assert.False(t, m.Snapshot().IsPlaying)
}

func TestMachine_IgnoresOtherMedia(t *testing.T) {
	m, _, e := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))

	m.HandleEvent(stateEvent(player.StatePlaying, "ref-b"))

	assert.Equal(t, PhaseLoading, m.Phase())
	assert.Empty(t, e.Listens())
}

func TestMachine_Closed(t *testing.T) {
	m, p, e := newTestMachine()
	require.NoError(t, m.Open(threeTracks()))
	m.Close()
	m.Close()

	assert.ErrorIs(t, m.Open(threeTracks()), ErrSessionClosed)
	assert.ErrorIs(t, m.Next(), ErrSessionClosed)
	assert.ErrorIs(t, m.Previous(), ErrSessionClosed)
	assert.ErrorIs(t, m.Select(1), ErrSessionClosed)
	assert.ErrorIs(t, m.TogglePlayPause(), ErrSessionClosed)
	assert.ErrorIs(t, m.SetRepeat(true), ErrSessionClosed)

	m.HandleEvent(stateEvent(player.StatePlaying, "ref-a"))
	assert.Empty(t, e.Listens())
	assert.Equal(t, []string{"load:ref-a"}, p.calls)

	snap := m.Snapshot()
	assert.True(t, snap.Closed)
	assert.False(t, snap.IsPlaying)
}

func TestMachine_OpenInert(t *testing.T) {
	m, p, e := newTestMachine()
	cause := &player.AdapterInitError{Driver: "mpv", Err: errors.New("not found")}

	m.OpenInert(threeTracks(), cause)

	snap := m.Snapshot()
	assert.Equal(t, PhaseEmpty, snap.Phase)
	assert.Len(t, snap.Tracks, 3)
	assert.Equal(t, cause, snap.Err)
	assert.Equal(t, []int64{7}, e.Listeners())

	assert.NoError(t, m.Next())
	assert.Empty(t, p.calls)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "empty", PhaseEmpty.String())
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "playing", PhasePlaying.String())
	assert.Equal(t, "paused", PhasePaused.String())
}
