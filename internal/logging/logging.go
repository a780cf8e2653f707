// Package logging builds the process-wide slog.Logger from configuration.
// The logger is created once in main and handed to every component; nothing
// here installs itself as slog's default.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/crucial707/adhoc-web/internal/config"
)

const (
	maxLogFileMB   = 10
	maxLogBackups  = 5
	levelCritical  = slog.LevelError + 4
	defaultLogMode = 0o755
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to stdout and, when cfg.LogFile is set, to a
// size-rotated file. The returned Closer flushes and closes the file.
func New(cfg config.Config) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), defaultLogMode); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    maxLogFileMB,
			MaxBackups: maxLogBackups,
		}
		w = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}
	return NewWithWriter(w, cfg.LogFormat, cfg.LogLevel), closer, nil
}

// NewWithWriter builds a logger on an arbitrary writer. format is "json" or
// anything else for text.
func NewWithWriter(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps DEBUG/INFO/WARNING/ERROR/CRITICAL (any case) to slog levels.
// Unknown values fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL", "FATAL":
		return levelCritical
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
