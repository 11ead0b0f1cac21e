// SPDX-License-Identifier: MPL-2.0

// Package logging installs the process-wide slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// ParseLevel maps a configured level name to a log level.
func ParseLevel(name string) (log.Level, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: expected debug, info, warn or error", name)
	}
	return lvl, nil
}

// New returns a charm logger writing to w at the given level.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "setpkg",
		Level:           level,
		ReportTimestamp: level <= log.DebugLevel,
	})
}

// Setup makes a charm logger writing to w the slog default and returns it.
func Setup(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := New(w, lvl)
	slog.SetDefault(slog.New(logger))
	return logger, nil
}
