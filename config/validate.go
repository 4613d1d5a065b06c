// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"

	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats lists the accepted log output formats.
var validLogFormats = map[string]bool{
	"terminal": true,
	"json":     true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if !validLogFormats[strings.ToLower(cfg.LogFormat)] {
		return ErrInvalidLogFormat
	}

	if _, err := cfg.FeeRateWAD(); err != nil {
		return err
	}

	if _, err := revshare.ParseRemainderPolicy(cfg.Remainder); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	if _, err := liquidity.ParsePolicy(cfg.Fallback); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	if cfg.RecentRequests <= 0 {
		return ErrInvalidRecentRequests
	}

	return nil
}
