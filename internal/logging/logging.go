// Package logging builds the slog logger used by the msgproto commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Options configures New.
type Options struct {
	Level   slog.Level
	NoColor bool
	// Writer overrides the destination; nil selects stderr.
	Writer io.Writer
}

// New returns a tint-backed logger. Color is disabled when the output is
// not a terminal.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	noColor := opts.NoColor
	f, isFile := w.(*os.File)
	if !isFile || !isatty.IsTerminal(f.Fd()) {
		noColor = true
	}
	if isFile && runtime.GOOS == "windows" {
		w = colorable.NewColorable(f)
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:   opts.Level,
		NoColor: noColor,
	})
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level %q", raw)
	}
}

// Err returns an attribute tint renders as a highlighted error.
func Err(err error) slog.Attr {
	return tint.Err(err)
}
