package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Renders log records as single lines on a stream.
//
// A handler created by [NewHandler] buffers records until [Flush] is called,
// so that output produced before CLI flags are parsed honors the final
// configuration. Derived handlers returned by WithAttrs and WithGroup share
// the buffer and configuration with their parent.
type Handler struct {
	state  *state
	groups []string
	attrs  []slog.Attr
}

// Shared mutable configuration and buffer, common to all derived handlers.
type state struct {
	mu        sync.Mutex
	level     slog.Level
	w         io.Writer
	colorize  bool
	verbose   bool
	buffering bool
	buffered  []entry
}

// A record held while the handler is buffering.
type entry struct {
	rec    slog.Record
	groups []string
	attrs  []slog.Attr
}

// Creates a buffering handler writing to stderr at info level.
func NewHandler() *Handler {
	return &Handler{
		state: &state{
			level:     slog.LevelInfo,
			w:         os.Stderr,
			buffering: true,
		},
	}
}

// Sets the minimum level for emitted records.
func (h *Handler) SetLevel(level slog.Level) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.level = level
}

// Sets the output stream.
func (h *Handler) SetStream(w io.Writer) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.w = w
}

// Enables or disables colored output.
func (h *Handler) SetColor(enabled bool) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.colorize = enabled
}

// Enables or disables verbose record rendering (timestamps and source
// groups on every line).
func (h *Handler) SetVerbose(enabled bool) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.verbose = enabled
}

// Writes all buffered records that pass the configured level and switches
// the handler to direct (unbuffered) mode.
func (h *Handler) Flush() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	for _, e := range h.state.buffered {
		if e.rec.Level >= h.state.level {
			h.state.write(e)
		}
	}
	h.state.buffered = nil
	h.state.buffering = false
}

// Reports whether records at the given level are emitted.
//
// While buffering, all records are accepted; level filtering is applied
// during [Handler.Flush], after the final level is known.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return h.state.buffering || level >= h.state.level
}

// Buffers or writes a single record.
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	e := entry{rec: rec, groups: h.groups, attrs: h.attrs}
	if h.state.buffering {
		h.state.buffered = append(h.state.buffered, e)
		return nil
	}

	h.state.write(e)
	return nil
}

// Returns a derived handler with additional bound attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *h
	derived.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &derived
}

// Returns a derived handler with an additional group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	derived := *h
	derived.groups = append(append([]string{}, h.groups...), name)
	return &derived
}

// Formats and writes a single entry. Caller holds the mutex.
func (s *state) write(e entry) {
	var b strings.Builder

	if s.verbose {
		b.WriteString(e.rec.Time.Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}

	b.WriteString(s.levelLabel(e.rec.Level))
	b.WriteByte(' ')

	if s.verbose && len(e.groups) > 0 {
		fmt.Fprintf(&b, "[%s] ", strings.Join(e.groups, "."))
	}

	b.WriteString(e.rec.Message)

	for _, a := range e.attrs {
		writeAttr(&b, a)
	}
	e.rec.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})

	b.WriteByte('\n')
	io.WriteString(s.w, b.String())
}

// Writes a single key=value attribute.
func writeAttr(b *strings.Builder, a slog.Attr) {
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}

// Returns the rendered level label, colored when enabled.
func (s *state) levelLabel(level slog.Level) string {
	label := strings.ToUpper(level.String())

	if !s.colorize {
		return label
	}

	switch {
	case level >= slog.LevelError:
		return color.RedString(label)
	case level >= slog.LevelWarn:
		return color.YellowString(label)
	case level >= slog.LevelInfo:
		return color.GreenString(label)
	default:
		return color.CyanString(label)
	}
}
