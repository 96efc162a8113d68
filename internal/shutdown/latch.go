// Package shutdown coordinates the orderly end of one vsts-pi command: the
// cancel-key fast exit, the cooperative termination path, and the completion
// handshake between them.
package shutdown

import (
	"sync"
	"time"
)

// Latch is a resettable, single-shot completion signal. Set releases every
// current and future waiter until the next Reset.
//
//	latch := NewLatch()
//	go func() { defer latch.Set(); work() }()
//	if !latch.Wait(30 * time.Second) {
//	    log.Println("gave up waiting")
//	}
type Latch struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Reset returns the latch to the unset state. A latch that is already unset
// is left untouched so goroutines waiting on it keep waiting.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		l.done = make(chan struct{})
		l.set = false
	}
}

// Set marks the latch as set and releases all waiters. It reports whether
// this call changed the state.
func (l *Latch) Set() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		return false
	}
	l.set = true
	close(l.done)
	return true
}

// IsSet reports whether the latch is set.
func (l *Latch) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// Wait blocks until the latch is set or timeout elapses, and reports whether
// the latch was set. A non-positive timeout checks without blocking.
func (l *Latch) Wait(timeout time.Duration) bool {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
