// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"LogFormat", cfg.LogFormat, "terminal"},
		{"FeeRate", cfg.FeeRate, "0"},
		{"Remainder", cfg.Remainder, "retain"},
		{"Fallback", cfg.Fallback, "capped"},
		{"RecentRequests", cfg.RecentRequests, 256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	// DataDir should end with .poolvault (we don't assert the full path
	// since it depends on the home directory).
	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	original := Config{
		DataDir:        "/tmp/test-poolvault",
		LogLevel:       "debug",
		LogFile:        "/tmp/poolvault.log",
		LogFormat:      "json",
		FeeRate:        "0.125",
		Remainder:      "fee",
		Fallback:       "sweep",
		RecentRequests: 32,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"DataDir", loaded.DataDir, original.DataDir},
		{"LogLevel", loaded.LogLevel, original.LogLevel},
		{"LogFile", loaded.LogFile, original.LogFile},
		{"LogFormat", loaded.LogFormat, original.LogFormat},
		{"FeeRate", loaded.FeeRate, original.FeeRate},
		{"Remainder", loaded.Remainder, original.Remainder},
		{"Fallback", loaded.Fallback, original.Fallback},
		{"RecentRequests", loaded.RecentRequests, original.RecentRequests},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "this-is-not-key-value\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad line: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfigCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := `# This is a comment
remainder = last

# Another comment
loglevel = debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Remainder != "last" {
		t.Errorf("Remainder = %q, want %q", cfg.Remainder, "last")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Unset fields should retain defaults.
	if cfg.Fallback != "capped" {
		t.Errorf("Fallback = %q, want default %q", cfg.Fallback, "capped")
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "futurekey = futurevalue\nnetwork = testnet\nfallback = sweep\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Fallback != "sweep" {
		t.Errorf("Fallback = %q, want %q", cfg.Fallback, "sweep")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_logformat",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "feerate_not_decimal",
			modify:  func(c *Config) { c.FeeRate = "ten percent" },
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "feerate_above_one",
			modify:  func(c *Config) { c.FeeRate = "1.5" },
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "feerate_negative",
			modify:  func(c *Config) { c.FeeRate = "-0.1" },
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "bad_remainder",
			modify:  func(c *Config) { c.Remainder = "split" },
			wantErr: ErrInvalidPolicy,
		},
		{
			name:    "bad_fallback",
			modify:  func(c *Config) { c.Fallback = "greedy" },
			wantErr: ErrInvalidPolicy,
		},
		{
			name:    "zero_recent_requests",
			modify:  func(c *Config) { c.RecentRequests = 0 },
			wantErr: ErrInvalidRecentRequests,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigValidPolicies(t *testing.T) {
	for _, remainder := range []string{"retain", "last", "fee"} {
		for _, fallback := range []string{"capped", "sweep"} {
			cfg := DefaultConfig()
			cfg.Remainder = remainder
			cfg.Fallback = fallback
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with remainder %q fallback %q: %v", remainder, fallback, err)
			}
		}
	}
}

func TestValidateConfigValidLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
		}
	}
}

// ---------------------------------------------------------------------------
// ConfigPath tests
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.poolvault")
	want := filepath.Join("/home/user/.poolvault", "config")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: DefaultDataDir
// ---------------------------------------------------------------------------

func TestDefaultDataDir_EndsWith_DotPoolvault(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".poolvault") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".poolvault")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: LoadConfig parser edge cases
// ---------------------------------------------------------------------------

func TestLoadConfig_EmptyValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "remainder=\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Remainder != "" {
		t.Errorf("Remainder = %q, want empty string", cfg.Remainder)
	}
}

func TestLoadConfig_MultipleEquals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	// The value "/tmp/a=b.log" contains an extra '='.
	// parseKeyValue should split on the first '=' only.
	content := "logfile=/tmp/a=b.log\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogFile != "/tmp/a=b.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/tmp/a=b.log")
	}
}

func TestLoadConfig_WhitespaceAroundEquals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	// Leading/trailing whitespace on the line and around '='.
	content := "  loglevel = warn  \n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: SaveConfig output format
// ---------------------------------------------------------------------------

func TestSaveConfig_OutputContainsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "# PoolVault Configuration") {
		t.Error("saved config should contain header '# PoolVault Configuration'")
	}
}

func TestSaveConfig_OutputContainsAllKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.Remainder = "fee"
	cfg.LogLevel = "warn"
	cfg.LogFile = "/var/log/poolvault.log"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	keys := []string{"datadir", "loglevel", "logfile", "logformat",
		"feerate", "remainder", "fallback", "recentrequests"}
	for _, key := range keys {
		if !strings.Contains(content, key+" = ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: ValidateConfig boundary cases
// ---------------------------------------------------------------------------

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	// ValidateConfig lowercases the log level before lookup,
	// so mixed-case values should be accepted.
	levels := []string{"INFO", "Debug", "WARN", "Error", "dEbUg"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

func TestFeeRateWAD(t *testing.T) {
	tests := []struct {
		rate string
		want string
	}{
		{"0", "0"},
		{"0.1", "100000000000000000"},
		{"0.125", "125000000000000000"},
		{"1", "1000000000000000000"},
		{" 0.5 ", "500000000000000000"},
	}
	for _, tc := range tests {
		t.Run(tc.rate, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.FeeRate = tc.rate
			got, err := cfg.FeeRateWAD()
			if err != nil {
				t.Fatalf("FeeRateWAD(%q): %v", tc.rate, err)
			}
			if got.Dec() != tc.want {
				t.Errorf("FeeRateWAD(%q) = %s, want %s", tc.rate, got.Dec(), tc.want)
			}
		})
	}
}

func TestLoadConfig_InvalidRecentRequests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	if err := os.WriteFile(path, []byte("recentrequests = many\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad recentrequests: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestValidateConfig_EmptyFallbackIsDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fallback = ""
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig empty Fallback: got %v, want nil", err)
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: LoadConfig error paths
// ---------------------------------------------------------------------------

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	if err := os.WriteFile(path, []byte("loglevel=debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Remove read permission.
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	// The error should NOT be ErrConfigNotFound; the file exists.
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// Supplementary tests: ConfigPath
// ---------------------------------------------------------------------------

func TestConfigPath_WithTrailingSlash(t *testing.T) {
	got := ConfigPath("/foo/")
	want := filepath.Join("/foo", "config")
	if got != want {
		t.Errorf("ConfigPath(%q) = %q, want %q", "/foo/", got, want)
	}
}
