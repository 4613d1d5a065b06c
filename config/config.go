// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the vault's key = value configuration file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/units"
)

const (
	configFileName = "config"
	dataDirName    = ".poolvault"
	header         = "# PoolVault Configuration"
)

// Config holds operator settings for a vault instance.
type Config struct {
	DataDir        string // directory holding the ledger database and lock file
	LogLevel       string // debug, info, warn or error
	LogFile        string // empty means stderr
	LogFormat      string // terminal or json
	FeeRate        string // decimal fraction of yield taken as fee, e.g. "0.1"
	Remainder      string // distribution remainder policy: retain, last or fee
	Fallback       string // redemption fallback sizing: capped or sweep
	RecentRequests int    // fulfilled distribution requests kept in memory
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       "info",
		LogFile:        "",
		LogFormat:      "terminal",
		FeeRate:        "0",
		Remainder:      revshare.RemainderRetain.String(),
		Fallback:       liquidity.CapToNeed.String(),
		RecentRequests: revshare.DefaultRecentRequests,
	}
}

// DefaultDataDir returns ~/.poolvault, or .poolvault in the working
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), configFileName)
}

// LoadConfig reads path on top of DefaultConfig. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	writeKV(&b, "datadir", cfg.DataDir)
	writeKV(&b, "loglevel", cfg.LogLevel)
	writeKV(&b, "logfile", cfg.LogFile)
	writeKV(&b, "logformat", cfg.LogFormat)
	writeKV(&b, "feerate", cfg.FeeRate)
	writeKV(&b, "remainder", cfg.Remainder)
	writeKV(&b, "fallback", cfg.Fallback)
	writeKV(&b, "recentrequests", strconv.Itoa(cfg.RecentRequests))

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// FeeRateWAD converts the decimal fee rate into an 18-decimal fraction.
func (c Config) FeeRateWAD() (*uint256.Int, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.FeeRate))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeeRate, c.FeeRate)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: %s outside [0, 1]", ErrInvalidFeeRate, rate)
	}
	wad, err := units.ParseUnits(rate.String(), units.ValueDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeeRate, err)
	}
	return wad, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "logformat":
		c.LogFormat = value
	case "feerate":
		c.FeeRate = value
	case "remainder":
		c.Remainder = value
	case "fallback":
		c.Fallback = value
	case "recentrequests":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("recentrequests: %w", err)
		}
		c.RecentRequests = n
	}
	return nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func writeKV(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s = %s\n", key, value)
}
