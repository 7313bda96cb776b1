package tracklist

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/Max-Kushnir/playlister/pkg/catalog"
)

// Track is one playable slot of a playlist
type Track struct {
	ID          int64  // Catalog song id
	Title       string // Song title
	Artist      string // Artist name
	Year        int    // Release year (0 if unknown)
	MediaRef    string // Opaque id the player can load
	Position    int    // 1-based slot in the playlist
	ListenCount int    // Listen count reported by the catalog when the list was built
}

// String returns the track the way the playlist renders it
func (t Track) String() string {
	if t.Year > 0 {
		return fmt.Sprintf("%s by %s (%d)", t.Title, t.Artist, t.Year)
	}
	return fmt.Sprintf("%s by %s", t.Title, t.Artist)
}

// List is an ordered, immutable view of a playlist's tracks.
// Indices are 0-based and stable for the lifetime of the list.
type List struct {
	tracks []Track
}

// New builds a List from tracks in playlist order. The slice is copied so
// later edits by the caller do not leak into an open session.
func New(tracks ...Track) List {
	cp := make([]Track, len(tracks))
	copy(cp, tracks)
	for i := range cp {
		if cp[i].Position == 0 {
			cp[i].Position = i + 1
		}
	}
	return List{tracks: cp}
}

// FromPlaylist converts a catalog playlist into a List.
// Slots without a song (deleted from the catalog) are skipped.
func FromPlaylist(p *catalog.Playlist) List {
	if p == nil {
		return List{}
	}

	slots := lo.Filter(p.Songs, func(ps catalog.PlaylistSong, _ int) bool {
		return ps.Song != nil
	})

	tracks := lo.Map(slots, func(ps catalog.PlaylistSong, i int) Track {
		return Track{
			ID:          ps.Song.ID,
			Title:       ps.Song.Title,
			Artist:      ps.Song.Artist,
			Year:        ps.Song.Year,
			MediaRef:    ps.Song.YouTubeID,
			Position:    i + 1,
			ListenCount: ps.Song.ListenCount,
		}
	})

	return New(tracks...)
}

// Len returns the number of tracks
func (l List) Len() int {
	return len(l.tracks)
}

// IsEmpty reports whether the list has no tracks
func (l List) IsEmpty() bool {
	return len(l.tracks) == 0
}

// At returns the track at index i
func (l List) At(i int) (Track, bool) {
	if i < 0 || i >= len(l.tracks) {
		return Track{}, false
	}
	return l.tracks[i], true
}

// Tracks returns a copy of all tracks
func (l List) Tracks() []Track {
	cp := make([]Track, len(l.tracks))
	copy(cp, l.tracks)
	return cp
}

// IndexOf returns the index of the first track with the given id, or -1
func (l List) IndexOf(id int64) int {
	_, idx, ok := lo.FindIndexOf(l.tracks, func(t Track) bool {
		return t.ID == id
	})
	if !ok {
		return -1
	}
	return idx
}
