// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// LogLevel maps a configured level name to a log level.
func LogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
}

// NewLogger builds a logger writing to the configured file, or to stderr
// when LogFile is empty. The returned closer releases the file.
func NewLogger(cfg Config) (log.Logger, io.Closer, error) {
	lvl, err := LogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
		color            = true
	)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
			return nil, nil, fmt.Errorf("config: create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("config: open log file: %w", err)
		}
		w, closer, color = f, f, false
	}

	var h slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		h = log.JSONHandlerWithLevel(w, lvl)
	case "terminal", "":
		h = log.NewTerminalHandlerWithLevel(w, lvl, color)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.LogFormat)
	}
	return log.NewLogger(h), closer, nil
}
