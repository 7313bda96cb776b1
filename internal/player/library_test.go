package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLibrary_PreparesOnce(t *testing.T) {
	var calls atomic.Int32
	prepare := func() error {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EnsureLibrary(t.Name(), prepare)
			assert.NoError(t, WaitLibrary(context.Background(), t.Name()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestWaitLibrary_SharedError(t *testing.T) {
	boom := errors.New("load failed")
	EnsureLibrary(t.Name(), func() error { return boom })

	assert.ErrorIs(t, WaitLibrary(context.Background(), t.Name()), boom)
	assert.ErrorIs(t, WaitLibrary(context.Background(), t.Name()), boom)
}

func TestWaitLibrary_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := WaitLibrary(ctx, "never-ensured")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
