package player

import (
	"context"
	"sync"
)

// library is the process-wide readiness state of one player backend.
// Preparation runs at most once no matter how many adapters wait on it.
type library struct {
	once  sync.Once
	ready chan struct{}
	err   error
}

var (
	librariesMu sync.Mutex
	libraries   = map[string]*library{}
)

func libraryFor(name string) *library {
	librariesMu.Lock()
	defer librariesMu.Unlock()

	lib, ok := libraries[name]
	if !ok {
		lib = &library{ready: make(chan struct{})}
		libraries[name] = lib
	}
	return lib
}

// EnsureLibrary starts preparing the named library unless that already
// happened. prepare may be nil when the backend needs no setup.
func EnsureLibrary(name string, prepare func() error) {
	lib := libraryFor(name)
	lib.once.Do(func() {
		go func() {
			if prepare != nil {
				lib.err = prepare()
			}
			close(lib.ready)
		}()
	})
}

// WaitLibrary blocks until the named library is ready or ctx is done.
// It returns the preparation error, which is the same for every waiter.
func WaitLibrary(ctx context.Context, name string) error {
	lib := libraryFor(name)
	select {
	case <-lib.ready:
		return lib.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
