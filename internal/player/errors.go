package player

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by transport commands before Initialize succeeds.
	ErrNotInitialized = errors.New("player: not initialized")
	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("player: destroyed")
)

// AdapterInitError reports that the driver could not be created.
// The session stays open but cannot play.
type AdapterInitError struct {
	Driver string
	Err    error
}

func (e *AdapterInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s player: %v", e.Driver, e.Err)
}

func (e *AdapterInitError) Unwrap() error {
	return e.Err
}

// CodeError wraps a numeric error code reported by a driver.
type CodeError struct {
	Code     int
	MediaRef string
}

func (e *CodeError) Error() string {
	if e.MediaRef == "" {
		return fmt.Sprintf("player error code %d", e.Code)
	}
	return fmt.Sprintf("player error code %d for %s", e.Code, e.MediaRef)
}
