package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState represents the current state of a spinner.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
)

// Spinner animation frames
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// spinnerInterval is the time between animation frames.
const spinnerInterval = 80 * time.Millisecond

// Spinner animates a status line on a terminal while a slow call (such as a
// task definition download) runs. Only use it when the writer is a TTY; the
// carriage-return redraws make a mess of log files.
type Spinner struct {
	mu           sync.Mutex
	w            io.Writer
	label        string
	state        SpinnerState
	frame        int
	startTime    time.Time
	stopChan     chan struct{}
	doneChan     chan struct{}
	running      bool
	lastRendered string
}

// NewSpinner creates a new spinner with the given label writing to w.
func NewSpinner(label string, w io.Writer) *Spinner {
	return &Spinner{
		w:     w,
		label: label,
		state: SpinnerPending,
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.state = SpinnerInProgress
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	s.render()

	go s.animate()
}

// Stop halts the spinner animation without changing state.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	<-s.doneChan
}

// Success stops the spinner and marks it as successful.
func (s *Spinner) Success() {
	s.finish(SpinnerSuccess)
}

// Fail stops the spinner and marks it as failed.
func (s *Spinner) Fail() {
	s.finish(SpinnerFailed)
}

func (s *Spinner) finish(state SpinnerState) {
	s.Stop()
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.renderFinal()
}

// State returns the current spinner state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Label returns the spinner's label.
func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// SetLabel updates the spinner's label.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	line := fmt.Sprintf("%s %s...", style.Render(spinnerFrames[s.frame]), s.label)

	s.clearLocked()
	fmt.Fprint(s.w, line)
	s.lastRendered = line
}

// clearLocked blanks the previously rendered line. s.mu must be held.
func (s *Spinner) clearLocked() {
	if s.lastRendered == "" {
		return
	}
	fmt.Fprint(s.w, "\r"+strings.Repeat(" ", len([]rune(s.lastRendered)))+"\r")
	s.lastRendered = ""
}

func (s *Spinner) renderFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol, color := SymbolPending, ColorMuted
	switch s.state {
	case SpinnerSuccess:
		symbol, color = SymbolComplete, ColorSuccess
	case SpinnerFailed:
		symbol, color = SymbolFail, ColorError
	}

	s.clearLocked()
	fmt.Fprintln(s.w, FormatPhase(symbol, color, s.label, formatDuration(time.Since(s.startTime))))
}
