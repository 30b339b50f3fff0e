// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/core/ports"
)

// messager describes an error that can report its own message without the chain,
// as zerr.Error does.
type messager interface {
	Message() string
}

// metadater describes an error carrying key/value context, as zerr.Error does.
type metadater interface {
	Metadata() map[string]any
}

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	jsonMode bool
	plain    bool
	output   io.Writer
}

// New creates a new Logger instance writing pretty output to stderr.
func New() ports.Logger {
	return &Logger{
		logger: slog.New(newHandler(os.Stderr, false, false)),
		output: os.Stderr,
	}
}

func newHandler(w io.Writer, jsonMode, plain bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonMode {
		return slog.NewJSONHandler(w, opts)
	}
	if plain {
		return newPrettyHandler(w, opts, termenv.Ascii)
	}
	return NewPrettyHandler(w, opts)
}

// SetOutput updates the logger's output destination, preserving the JSON mode.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.logger = slog.New(newHandler(w, l.jsonMode, l.plain))
}

// SetJSON switches between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.rebuild()
}

// SetColor enables or disables colored pretty output.
func (l *Logger) SetColor(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.plain = !enable
	l.rebuild()
}

func (l *Logger) rebuild() {
	w := l.output
	if w == nil {
		w = os.Stderr
	}
	l.logger = slog.New(newHandler(w, l.jsonMode, l.plain))
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs an error with its cause chain.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.jsonMode {
		args := []any{"error", err.Error()}
		if m, ok := err.(metadater); ok {
			for k, v := range m.Metadata() {
				args = append(args, k, v)
			}
		}
		l.logger.Error("operation failed", args...)
		return
	}

	msg := formatErrorEntries(collectErrorEntries(err))
	if out := outputTail(err); out != "" {
		msg += "\n\n  Output:\n" + indent(out, "    ")
	}
	l.logger.Error(msg)
}

// outputTail returns the first "output" metadata value found along the chain.
func outputTail(err error) string {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if m, ok := current.(metadater); ok {
			if out, ok := m.Metadata()["output"].(string); ok && out != "" {
				return out
			}
		}
	}
	return ""
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// collectErrorEntries walks the error chain and returns one message per cause.
// Joined errors contribute each member as a separate entry.
func collectErrorEntries(err error) []string {
	var messages []string
	current := err

	for current != nil {
		if joined, ok := current.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				messages = append(messages, collectErrorEntries(e)...)
			}
			break
		}
		if m, ok := current.(messager); ok {
			messages = append(messages, m.Message())
			current = errors.Unwrap(current)
			continue
		}
		messages = append(messages, current.Error())
		break
	}
	return messages
}

func formatErrorEntries(messages []string) string {
	var lines []string

	for i, msg := range messages {
		parts := strings.Split(msg, "\n")

		if i == 0 {
			lines = append(lines, "Error: "+parts[0])
			for _, line := range parts[1:] {
				lines = append(lines, "       "+line)
			}
			continue
		}

		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+parts[0])
		for _, line := range parts[1:] {
			lines = append(lines, "      "+line)
		}
	}

	return strings.Join(lines, "\n")
}
