// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidLogFormat indicates the log format is not recognized.
	ErrInvalidLogFormat = errors.New("config: invalid log format (must be \"terminal\" or \"json\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidFeeRate indicates the fee rate is not a decimal in [0, 1].
	ErrInvalidFeeRate = errors.New("config: invalid fee rate")

	// ErrInvalidPolicy indicates an unknown remainder or fallback policy.
	ErrInvalidPolicy = errors.New("config: invalid policy")

	// ErrInvalidRecentRequests indicates a non-positive request cache size.
	ErrInvalidRecentRequests = errors.New("config: recentrequests must be positive")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
