package epson

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestBusyLockSingleHolder(t *testing.T) {
	lock := NewBusyLock(nil)

	release, err := lock.TryAcquire("PWR ON")
	require.NoError(t, err)
	assert.True(t, lock.Held())
	assert.Equal(t, "PWR ON", lock.Label())

	_, err = lock.TryAcquire("get_power")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "PWR ON")

	release()
	release()
	assert.False(t, lock.Held())
	assert.Empty(t, lock.Label())

	again, err := lock.TryAcquire("get_power")
	require.NoError(t, err)
	again()
}

func TestBusyLockConcurrentAcquire(t *testing.T) {
	lock := NewBusyLock(nil)

	var winners atomic.Int32
	var releases []func()
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.TryAcquire("op")
			if err != nil {
				return
			}
			winners.Inc()
			mu.Lock()
			releases = append(releases, release)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
	for _, release := range releases {
		release()
	}
	assert.False(t, lock.Held())
}

func TestBusyLockObserver(t *testing.T) {
	type event struct {
		busy  bool
		label string
	}
	var events []event
	lock := NewBusyLock(func(busy bool, label string) {
		events = append(events, event{busy, label})
	})

	release, err := lock.TryAcquire("LUMLEVEL")
	require.NoError(t, err)
	_, err = lock.TryAcquire("other")
	require.Error(t, err)
	release()

	assert.Equal(t, []event{{true, "LUMLEVEL"}, {false, "LUMLEVEL"}}, events)
}
