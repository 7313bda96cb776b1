package player

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Driver is an instance of an external media player.
//
// Drivers report back only through the Callbacks they were created with.
// Callbacks may arrive on any goroutine, in any order, and may refer to media
// that is no longer current; the Adapter filters them.
type Driver interface {
	Play() error
	Pause() error
	LoadMedia(ref string) error
	Destroy() error
}

// Callbacks is the event surface of a Driver.
type Callbacks struct {
	OnReady       func()
	OnStateChange func(code int, ref string)
	OnError       func(code int, ref string)
}

// DriverConfig is passed to a Factory when a driver is constructed.
type DriverConfig struct {
	Container  string // name of the window/socket the player attaches to
	InitialRef string // media loaded when the player becomes ready
}

// Factory constructs a driver. Callbacks must not be invoked synchronously
// from inside the factory; they may fire from other goroutines at any time.
type Factory func(ctx context.Context, cfg DriverConfig, cb Callbacks) (Driver, error)

// Backend bundles a driver factory with the one-time library setup it needs.
type Backend struct {
	Name    string
	Prepare func() error // run once per process, before the first driver
	New     Factory
}

// Config selects and configures a backend.
type Config struct {
	Driver         string        // "mpv" or "sim"
	MpvPath        string        // mpv executable
	SimTrackLength time.Duration // simulated track length
}

// NewBackend returns the backend named by cfg.Driver.
func NewBackend(cfg Config, logger zerolog.Logger) (Backend, error) {
	switch cfg.Driver {
	case "mpv", "":
		path := cfg.MpvPath
		if path == "" {
			path = "mpv"
		}
		return MPVBackend(path, logger), nil
	case "sim":
		return SimBackend(cfg.SimTrackLength, logger), nil
	default:
		return Backend{}, fmt.Errorf("unknown player driver %q", cfg.Driver)
	}
}
