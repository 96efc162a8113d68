package ui

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer guards the buffer against the animation goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Testing", &syncBuffer{})
	assert.Equal(t, "Testing", s.Label())
	assert.Equal(t, SpinnerPending, s.State())
}

func TestSpinnerStartStop(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner("Test", &buf)

	s.Start()
	assert.Equal(t, SpinnerInProgress, s.State())
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	assert.Equal(t, SpinnerInProgress, s.State(), "Stop leaves the state alone")
	assert.Contains(t, buf.String(), "Test...")
	assert.Contains(t, buf.String(), "\r", "frames redraw in place")
}

func TestSpinnerOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Spinner)
		state  SpinnerState
		symbol string
	}{
		{"success", (*Spinner).Success, SpinnerSuccess, SymbolComplete},
		{"fail", (*Spinner).Fail, SpinnerFailed, SymbolFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			s := NewSpinner("Refreshing task definitions", &buf)

			s.Start()
			s.SetLabel("Refreshed 3 task definitions")
			tt.finish(s)

			assert.Equal(t, tt.state, s.State())
			out := buf.String()
			assert.Contains(t, out, tt.symbol+" Refreshed 3 task definitions ")
			assert.True(t, len(out) > 0 && out[len(out)-1] == '\n')
		})
	}
}

func TestSpinnerDoubleStartStop(t *testing.T) {
	s := NewSpinner("Test", &syncBuffer{})

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	assert.Equal(t, SpinnerInProgress, s.State())
}

func TestSpinnerConcurrentAccess(t *testing.T) {
	s := NewSpinner("Test", &syncBuffer{})
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Label()
			_ = s.State()
			s.SetLabel("Updated")
		}()
	}
	wg.Wait()
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
}
