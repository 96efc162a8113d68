package output

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// maskText replaces secret values in step output.
const maskText = "***"

// CommandHandler receives the logging commands a step writes to stdout.
type CommandHandler func(Command)

// StreamHandler multiplexes stdout and stderr from a step, with line
// buffering and ANSI passthrough.
type StreamHandler struct {
	stdout io.Writer
	stderr io.Writer
	mu     sync.Mutex

	// Formatter processes each line before output.
	// If nil, lines pass through unchanged.
	formatter Formatter

	onCommand CommandHandler

	// secrets has its own lock so a CommandHandler, which runs with mu
	// held, can call Mask.
	secretsMu sync.RWMutex
	secrets   []string

	outWriter *streamWriter
	errWriter *streamWriter

	// Stats tracking
	stdoutLines int
	stderrLines int
	commands    int
}

// NewStreamHandler creates a handler that writes to the given stdout/stderr.
func NewStreamHandler(stdout, stderr io.Writer) *StreamHandler {
	h := &StreamHandler{
		stdout: stdout,
		stderr: stderr,
	}
	h.outWriter = &streamWriter{handler: h, isStderr: false}
	h.errWriter = &streamWriter{handler: h, isStderr: true}
	return h
}

// SetFormatter sets the line formatter.
func (h *StreamHandler) SetFormatter(f Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

// OnCommand sets the handler for logging commands. Command lines are
// consumed and not echoed. Without a handler they print like other output.
func (h *StreamHandler) OnCommand(fn CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCommand = fn
}

// Mask hides secret in all later output.
func (h *StreamHandler) Mask(secret string) {
	if secret == "" {
		return
	}
	h.secretsMu.Lock()
	defer h.secretsMu.Unlock()
	h.secrets = append(h.secrets, secret)
}

// Stdout returns a writer that processes lines for stdout.
func (h *StreamHandler) Stdout() io.Writer {
	return h.outWriter
}

// Stderr returns a writer that processes lines for stderr.
func (h *StreamHandler) Stderr() io.Writer {
	return h.errWriter
}

// Flush writes any partial lines still buffered by Stdout and Stderr.
func (h *StreamHandler) Flush() error {
	if err := h.outWriter.Flush(); err != nil {
		return err
	}
	return h.errWriter.Flush()
}

// StdoutLines returns the number of stdout lines processed.
func (h *StreamHandler) StdoutLines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stdoutLines
}

// StderrLines returns the number of stderr lines processed.
func (h *StreamHandler) StderrLines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderrLines
}

// Commands returns the number of logging commands handled.
func (h *StreamHandler) Commands() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commands
}

// WriteStdout writes a line to stdout after processing.
func (h *StreamHandler) WriteStdout(line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stdoutLines++

	if h.onCommand != nil {
		if cmd, ok := ParseCommand(line); ok {
			h.commands++
			h.onCommand(cmd)
			return nil
		}
	}
	return h.write(h.stdout, line)
}

// WriteStderr writes a line to stderr after processing.
func (h *StreamHandler) WriteStderr(line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stderrLines++
	return h.write(h.stderr, line)
}

// write must be called with h.mu held.
func (h *StreamHandler) write(w io.Writer, line string) error {
	h.secretsMu.RLock()
	for _, s := range h.secrets {
		line = strings.ReplaceAll(line, s, maskText)
	}
	h.secretsMu.RUnlock()
	if h.formatter != nil {
		var keep bool
		if line, keep = h.formatter.ProcessLine(line); !keep {
			return nil
		}
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// streamWriter wraps the handler to implement io.Writer.
type streamWriter struct {
	handler  *StreamHandler
	isStderr bool

	mu  sync.Mutex
	buf []byte
}

// Write implements io.Writer with line buffering.
// Incomplete lines are buffered until a newline arrives.
func (w *streamWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n = len(p)
	w.buf = append(w.buf, p...)

	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}

		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]

		if err := w.emit(line); err != nil {
			return n, err
		}
	}

	return n, nil
}

// Flush writes any remaining buffered content.
func (w *streamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}
	line := string(w.buf)
	w.buf = nil
	return w.emit(line)
}

func (w *streamWriter) emit(line string) error {
	line = strings.TrimSuffix(line, "\r")
	if w.isStderr {
		return w.handler.WriteStderr(line)
	}
	return w.handler.WriteStdout(line)
}
