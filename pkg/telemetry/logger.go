package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lepinkainen/humanlog"
)

// Log formats accepted by NewLogger.
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatHuman = "human"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// NewLogger builds a slog.Logger writing to w.
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON, "":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case FormatText:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	case FormatHuman:
		h = humanlog.NewHandler(w, &humanlog.Options{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return slog.New(h), nil
}
