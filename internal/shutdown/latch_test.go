package shutdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatch_InitiallyUnset(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.IsSet())
	assert.False(t, l.Wait(0))
}

func TestLatch_SetReleasesWaiters(t *testing.T) {
	l := NewLatch()

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Wait(2 * time.Second)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Set())
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "waiter %d should have been released", i)
	}
}

func TestLatch_SetOnce(t *testing.T) {
	l := NewLatch()
	assert.True(t, l.Set())
	assert.False(t, l.Set(), "second Set is a no-op")
	assert.True(t, l.IsSet())
}

func TestLatch_WaitTimesOut(t *testing.T) {
	l := NewLatch()

	start := time.Now()
	ok := l.Wait(30 * time.Millisecond)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLatch_WaitAfterSetReturnsImmediately(t *testing.T) {
	l := NewLatch()
	l.Set()

	assert.True(t, l.Wait(time.Hour))
	assert.True(t, l.Wait(0))
}

func TestLatch_Reset(t *testing.T) {
	l := NewLatch()
	l.Set()

	l.Reset()

	assert.False(t, l.IsSet())
	assert.False(t, l.Wait(10*time.Millisecond))
	assert.True(t, l.Set())
}

func TestLatch_ResetKeepsPendingWaiters(t *testing.T) {
	l := NewLatch()
	released := make(chan bool, 1)
	go func() { released <- l.Wait(2 * time.Second) }()

	time.Sleep(20 * time.Millisecond)
	l.Reset() // unset latch: waiter must still see the next Set
	l.Set()

	select {
	case ok := <-released:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was orphaned by Reset")
	}
}
