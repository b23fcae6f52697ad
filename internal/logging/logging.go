// Package logging sets up structured logging for the core: a slog.Logger
// with two custom verbosity levels below slog.LevelDebug, a stderr text
// handler, and an optional file sink.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LevelTrace and LevelDump extend slog's level range for very verbose
// subprocess/prompt dumps that would otherwise drown out Debug output.
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDump  slog.Level = slog.LevelDebug - 8
)

// VerbosityToLevel maps a -v count (0..3+) to a slog.Level.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelInfo
	case v == 1:
		return slog.LevelDebug
	case v == 2:
		return LevelTrace
	default:
		return LevelDump
	}
}

// New builds a stderr-only logger at the given level.
func New(level slog.Level) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// NewFile builds a logger that writes to both stderr and a timestamped file
// under <root>/.lisa/logs/. Falls back to stderr-only on any error creating
// the file, returning a no-op cleanup closure in that case.
func NewFile(root string, level slog.Level) (logger *slog.Logger, path string, cleanup func(), err error) {
	logDir := filepath.Join(root, ".lisa", "logs")
	if mkErr := os.MkdirAll(logDir, 0o755); mkErr != nil {
		return New(level), "", func() {}, nil
	}

	name := time.Now().UTC().Format("2006-01-02T15-04-05") + ".log"
	path = filepath.Join(logDir, name)
	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if openErr != nil {
		return New(level), "", func() {}, nil
	}

	w := io.MultiWriter(os.Stderr, f)
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), path, func() { _ = f.Close() }, nil
}
