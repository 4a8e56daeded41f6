// Package logging builds the process-wide slog logger of the binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// New returns a tint logger writing to stderr. Colors are enabled only on a
// terminal and timestamps are dropped under systemd, which adds its own.
func New(level slog.Leveler) *slog.Logger {
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return NewWithWriter(colorable.NewColorable(os.Stderr), level, !isatty.IsTerminal(os.Stderr.Fd()), underSystemd)
}

// NewWithWriter returns a tint logger writing to w.
func NewWithWriter(w io.Writer, level slog.Leveler, noColor, dropTime bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if dropTime && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Empty attributes only add noise.
			switch t := a.Value.Any().(type) {
			case string:
				if t == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if t == 0 {
					return slog.Attr{}
				}
			case nil:
				return slog.Attr{}
			}
			return a
		},
	}))
}
