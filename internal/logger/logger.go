// Package logger is the process-wide logging facade. It keeps one slog text
// handler behind an atomic pointer so the entrypoint can re-point the stream
// at a stdout+file multiwriter after the config is loaded, without racing
// goroutines that are already logging.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	current  atomic.Pointer[slog.Logger]
)

func init() {
	Configure("info", os.Stdout)
}

// Configure sets the level and destination in one call; cmd wires it from the
// app config at startup. Unknown level names fall back to info.
func Configure(level string, w io.Writer) {
	levelVar.Set(ParseLevel(level))
	SetOutput(w)
}

// ParseLevel maps a config level name to a slog level. The zero value and
// anything unrecognized resolve to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel adjusts the threshold without rebuilding the handler.
func SetLevel(name string) {
	levelVar.Set(ParseLevel(name))
}

// SetOutput swaps the destination while keeping the current level. The handler
// shares levelVar, so later SetLevel calls apply to it too.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
	current.Store(slog.New(handler))
}

func active() *slog.Logger {
	return current.Load()
}

func Debugf(format string, v ...any) {
	active().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	active().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	active().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}
