package observability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_RunsFuncs(t *testing.T) {
	sm := NewShutdownManager(nil, time.Second)

	var calls int32
	for _, name := range []string{"postgres", "redis", "audit"} {
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(nil, time.Second)
	sm.RegisterShutdownFunc("audit", func(context.Context) error { return errors.New("flush failed") })
	sm.RegisterShutdownFunc("scheduler", func(context.Context) error { return nil })
	sm.RegisterShutdownFunc("panicky", func(context.Context) error { panic("boom") })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit: flush failed")
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(nil, 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	sm.RegisterShutdownFunc("stuck", func(context.Context) error {
		<-release
		return nil
	})

	assert.EqualError(t, sm.Shutdown(), "shutdown timeout reached")
}

func TestShutdownManager_WaitForContext(t *testing.T) {
	sm := NewShutdownManager(nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sm.WaitForShutdown(ctx))
}

func TestGuard(t *testing.T) {
	ran := false
	job := Guard(NopLogger(), "maintenance", func() {
		ran = true
		panic("limiter cleanup failed")
	})

	assert.NotPanics(t, job)
	assert.True(t, ran)

	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("boom"), "panic: boom")
}
