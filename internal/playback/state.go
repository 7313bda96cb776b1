package playback

import (
	"github.com/Max-Kushnir/playlister/internal/tracklist"
	"github.com/Max-Kushnir/playlister/pkg/catalog"
)

// Phase is the playback phase of a session
type Phase int

const (
	PhaseEmpty   Phase = iota // nothing loaded
	PhaseLoading              // a track was requested and will autoplay
	PhasePlaying
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Playlist is what a session plays
type Playlist struct {
	ID     int64
	Name   string
	Owner  string
	Tracks tracklist.List
}

// PlaylistFromCatalog converts a catalog playlist
func PlaylistFromCatalog(p *catalog.Playlist) Playlist {
	if p == nil {
		return Playlist{}
	}
	return Playlist{
		ID:     p.ID,
		Name:   p.Name,
		Owner:  p.OwnerName(),
		Tracks: tracklist.FromPlaylist(p),
	}
}

// Snapshot is a read-only view of a session for rendering
type Snapshot struct {
	SessionID    string
	PlaylistID   int64
	PlaylistName string
	Owner        string
	Phase        Phase
	CurrentIndex int // -1 when nothing is selected
	IsPlaying    bool
	Repeat       bool
	CurrentTrack *tracklist.Track
	Tracks       []tracklist.Track
	Err          error // last playback-affecting error
	Listens      int   // listens emitted this session
	NewListener  bool  // the service counted this session as a new listener
	Loads        int   // track loads requested this session, replays included
	Closed       bool
}
