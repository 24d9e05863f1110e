// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// LevelTrace sits below slog.LevelDebug and carries per-record diagnostics.
const LevelTrace = slog.Level(-8)

func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return log
}

// NewLogger returns a console logger writing to w at the given level.
// Colour is only used when w is a terminal.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  "2006-01-02 15:04:05",
		NoColor:     !isTerminal(w),
		ReplaceAttr: replaceLevel,
	}))
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRC")
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
