// Package terminal is the line-oriented console of vsts-pi: standard output,
// an error channel, and the Ctrl+C (cancel key) notification source.
package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/elgendy/vsts-agent/internal/ui"
	"golang.org/x/term"
)

// CancelHandler is notified when the user presses the cancel key. OnCancel
// runs on the signal goroutine.
type CancelHandler interface {
	OnCancel()
}

// Terminal writes lines to stdout and errors to stderr, and turns SIGINT into
// cancel notifications while at least one handler is registered. Outside that
// window Ctrl+C keeps its default behavior.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers []CancelHandler
	sigChan  chan os.Signal
	stopChan chan struct{}
}

// New creates a terminal over the given streams.
func New(in io.Reader, out, errOut io.Writer) *Terminal {
	return &Terminal{in: in, out: out, errOut: errOut}
}

// Std creates a terminal over the process's standard streams.
func Std() *Terminal {
	return New(os.Stdin, os.Stdout, os.Stderr)
}

// Out returns the standard output writer, for renderers that stream output.
func (t *Terminal) Out() io.Writer {
	return t.out
}

// ErrOut returns the error writer, for child process stderr.
func (t *Terminal) ErrOut() io.Writer {
	return t.errOut
}

// Interactive reports whether both stdin and stdout are terminals, so it is
// safe to prompt.
func (t *Terminal) Interactive() bool {
	f, ok := t.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return ui.IsTerminal(t.out)
}

// WriteLine writes s followed by a newline to standard output.
func (t *Terminal) WriteLine(s string) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	fmt.Fprintln(t.out, s)
}

// WriteError writes s as a single error line to the error channel.
// Line breaks inside s are folded so one error is always one line.
func (t *Terminal) WriteError(s string) {
	line := strings.Join(strings.Fields(s), " ")
	style := lipgloss.NewStyle().Foreground(ui.ColorError)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	fmt.Fprintln(t.errOut, style.Render(ui.SymbolFail+" "+line))
}

// AddCancelHandler registers handler for cancel-key notifications. The first
// registration starts capturing SIGINT.
func (t *Terminal) AddCancelHandler(handler CancelHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers = append(t.handlers, handler)
	if t.sigChan == nil {
		t.startCapture()
	}
}

// RemoveCancelHandler unregisters handler. Removing the last handler restores
// the default SIGINT behavior. Unknown handlers are ignored.
func (t *Terminal) RemoveCancelHandler(handler CancelHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := slices.Index(t.handlers, handler)
	if i < 0 {
		return
	}
	t.handlers = slices.Delete(t.handlers, i, i+1)
	if len(t.handlers) == 0 && t.sigChan != nil {
		t.stopCapture()
	}
}

// CancelHandlers returns how many handlers are registered.
func (t *Terminal) CancelHandlers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

// Capturing reports whether SIGINT is currently being intercepted.
func (t *Terminal) Capturing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sigChan != nil
}

// Cancel notifies every registered handler, as a cancel key press does.
func (t *Terminal) Cancel() {
	t.mu.Lock()
	handlers := slices.Clone(t.handlers)
	t.mu.Unlock()

	for _, h := range handlers {
		h.OnCancel()
	}
}

// startCapture must be called with mu held.
func (t *Terminal) startCapture() {
	sigChan := make(chan os.Signal, 1)
	stopChan := make(chan struct{})
	signal.Notify(sigChan, os.Interrupt)
	t.sigChan, t.stopChan = sigChan, stopChan

	go func() {
		for {
			select {
			case <-sigChan:
				t.Cancel()
			case <-stopChan:
				return
			}
		}
	}()
}

// stopCapture must be called with mu held.
func (t *Terminal) stopCapture() {
	signal.Stop(t.sigChan)
	close(t.stopChan)
	t.sigChan, t.stopChan = nil, nil
}
