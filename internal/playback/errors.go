package playback

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed   = errors.New("playback: session closed")
	ErrIndexOutOfRange = errors.New("playback: track index out of range")
	ErrNotPlayable     = errors.New("playback: nothing to play or pause")
)

// LoadError reports that a track could not be loaded or played.
// The session stays on the track; navigating away recovers.
type LoadError struct {
	Index   int
	TrackID int64
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load track %d (index %d): %v", e.TrackID, e.Index, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
