// Package playertest provides a scripted player driver for tests of code
// built on the player package.
package playertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Max-Kushnir/playlister/internal/player"
)

// Mock is a scripted player.Driver. Commands are recorded and callbacks
// are fired explicitly with the Fire methods.
type Mock struct {
	mu        sync.Mutex
	cfg       player.DriverConfig
	cb        player.Callbacks
	calls     []string
	destroyed bool

	// Err, when set, is returned by every command.
	Err error
}

// Play records a play command.
func (m *Mock) Play() error { return m.record("play") }

// Pause records a pause command.
func (m *Mock) Pause() error { return m.record("pause") }

// LoadMedia records a load command.
func (m *Mock) LoadMedia(ref string) error { return m.record("load:" + ref) }

// Destroy records a destroy command.
func (m *Mock) Destroy() error {
	m.mu.Lock()
	m.destroyed = true
	m.mu.Unlock()
	return m.record("destroy")
}

func (m *Mock) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.Err
}

// Calls returns the commands received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Config returns the configuration the mock was created with.
func (m *Mock) Config() player.DriverConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Destroyed reports whether Destroy was called.
func (m *Mock) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// FireReady invokes the ready callback.
func (m *Mock) FireReady() {
	m.callbacks().OnReady()
}

// FireState invokes the state-change callback with a raw code.
func (m *Mock) FireState(code int, ref string) {
	m.callbacks().OnStateChange(code, ref)
}

// FireError invokes the error callback with a raw code.
func (m *Mock) FireError(code int, ref string) {
	m.callbacks().OnError(code, ref)
}

func (m *Mock) callbacks() player.Callbacks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb
}

// MockFactory builds Mock drivers and remembers them.
type MockFactory struct {
	mu    sync.Mutex
	mocks []*Mock

	// NewErr, when set, makes construction fail.
	NewErr error
	// PrepareErr, when set, makes library preparation fail.
	PrepareErr error
}

// NewMockFactory returns an empty factory.
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// Backend returns a backend that creates mocks. Each factory uses its own
// library name so preparation results do not leak between tests.
func (f *MockFactory) Backend() player.Backend {
	return player.Backend{
		Name: fmt.Sprintf("mock-%p", f),
		Prepare: func() error {
			return f.PrepareErr
		},
		New: func(ctx context.Context, cfg player.DriverConfig, cb player.Callbacks) (player.Driver, error) {
			if f.NewErr != nil {
				return nil, f.NewErr
			}
			m := &Mock{cfg: cfg, cb: cb}
			f.mu.Lock()
			f.mocks = append(f.mocks, m)
			f.mu.Unlock()
			return m, nil
		},
	}
}

// Last returns the most recently created mock, or nil.
func (f *MockFactory) Last() *Mock {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.mocks) == 0 {
		return nil
	}
	return f.mocks[len(f.mocks)-1]
}

// Count returns how many mocks were created.
func (f *MockFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mocks)
}
