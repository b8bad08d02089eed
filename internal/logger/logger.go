package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rivermonitor/internal/config"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	zl    zerolog.Logger
	files []*os.File
}

// NewLogger creates a Logger and ensures the log directory exists. With an
// empty directory entries only go to the console.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	w := &levelWriter{
		stdout: consoleWriter(os.Stdout, cfg.Format),
		stderr: consoleWriter(os.Stderr, cfg.Format),
	}
	l := &Logger{}

	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		for _, name := range []string{"info.log", "warning.log", "error.log"} {
			file, err := os.OpenFile(filepath.Join(cfg.Directory, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				l.Close()
				return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
			}
			l.files = append(l.files, file)
		}
		w.info, w.warning, w.error = l.files[0], l.files[1], l.files[2]
	}

	l.zl = newZerolog(w, cfg.Level)
	return l, nil
}

// New wraps a single writer, which receives every level. Used by tests and
// command line tools.
func New(w io.Writer, level string) *Logger {
	return &Logger{zl: newZerolog(w, level)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newZerolog(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

func consoleWriter(out io.Writer, format string) io.Writer {
	if format == "console" {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return out
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// With returns a child logger that adds key=value to every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Close closes the log files. Child loggers share them.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// levelWriter sends each entry to the console stream and the file for its level.
type levelWriter struct {
	mu      sync.Mutex
	stdout  io.Writer
	stderr  io.Writer
	info    io.Writer
	warning io.Writer
	error   io.Writer
}

func (w *levelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	console, file := w.stdout, w.info
	switch {
	case level >= zerolog.ErrorLevel:
		console, file = w.stderr, w.error
	case level == zerolog.WarnLevel:
		file = w.warning
	}

	if file != nil {
		if _, err := file.Write(p); err != nil {
			return 0, err
		}
	}
	if _, err := console.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
