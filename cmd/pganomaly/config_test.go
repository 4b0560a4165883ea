package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/rmax-ai/pganomaly/pkg/config"
)

// testFlags mirrors the run command's flag set, including the persistent
// root flags.
func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("env-file", defaultEnvFile, "")
	fs.String("log-format", "json", "")
	fs.String("log-level", "info", "")
	registerDemoFlags(fs)
	fs.String("history-db", defaultHistoryPath, "")
	fs.String("redis-addr", "", "")
	fs.String("status-ttl", "", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func writeEnvFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.env")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(testFlags(t, "--env-file", ""))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}

	d := config.Default()
	cfg := s.Demo
	if cfg.Port != d.Port || cfg.Database != d.Database || cfg.Intensity != d.Intensity {
		t.Errorf("connection defaults = %d/%s/%s", cfg.Port, cfg.Database, cfg.Intensity)
	}
	if cfg.Baseline != 180*time.Second || cfg.Spacing != 300*time.Second || cfg.TotalDuration != 20*time.Minute {
		t.Errorf("timing defaults = %s/%s/%s", cfg.Baseline, cfg.Spacing, cfg.TotalDuration)
	}
	if !cfg.BackgroundEnabled {
		t.Error("background traffic should default to enabled")
	}
	if cfg.BruteForce.Enabled || cfg.BruteForce.Attempts != 20 {
		t.Errorf("brute force defaults = %+v", cfg.BruteForce)
	}
	if s.HistoryPath != defaultHistoryPath {
		t.Errorf("HistoryPath = %q", s.HistoryPath)
	}
	if s.StatusTTL != 0 {
		t.Errorf("StatusTTL = %s, want 0 (store default)", s.StatusTTL)
	}
}

func TestLoadSettings_Environment(t *testing.T) {
	t.Setenv(keyServers, "db1, db2,")
	t.Setenv(keyUser, "demo")
	t.Setenv(keyPassword, "secret")
	t.Setenv(keyIntensity, " HIGH ")
	t.Setenv(keyBackground, "false")
	t.Setenv(keyBaseline, "90s")
	t.Setenv(keySpacing, "1.5")
	t.Setenv(keyTotalMinutes, "5")
	t.Setenv(keyBruteForce, "true")
	t.Setenv(keyStatusTTL, "60")

	s, err := loadSettings(testFlags(t, "--env-file", ""))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	cfg := s.Demo
	if got := strings.Join(cfg.Servers, ","); got != "db1,db2" {
		t.Errorf("Servers = %q", got)
	}
	if cfg.User != "demo" || cfg.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.User, cfg.Password)
	}
	if cfg.Intensity != "high" {
		t.Errorf("Intensity = %q, want high", cfg.Intensity)
	}
	if cfg.BackgroundEnabled {
		t.Error("BackgroundEnabled should be false")
	}
	if cfg.Baseline != 90*time.Second {
		t.Errorf("Baseline = %s", cfg.Baseline)
	}
	if cfg.Spacing != 1500*time.Millisecond {
		t.Errorf("Spacing = %s", cfg.Spacing)
	}
	if cfg.TotalDuration != 5*time.Minute {
		t.Errorf("TotalDuration = %s", cfg.TotalDuration)
	}
	if !cfg.BruteForce.Enabled {
		t.Error("brute force should be enabled")
	}
	if s.StatusTTL != time.Minute {
		t.Errorf("StatusTTL = %s", s.StatusTTL)
	}
}

func TestLoadSettings_Precedence(t *testing.T) {
	envFile := writeEnvFile(t,
		keyServers+"=file-host",
		keyPort+"=6543",
		keyDatabase+"=filedb",
	)

	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		servers  string
		port     int
		database string
	}{
		{
			name:     "env file only",
			servers:  "file-host",
			port:     6543,
			database: "filedb",
		},
		{
			name:     "environment beats env file",
			env:      map[string]string{keyServers: "env-host", keyPort: "7000"},
			servers:  "env-host",
			port:     7000,
			database: "filedb",
		},
		{
			name:     "flag beats environment",
			env:      map[string]string{keyServers: "env-host"},
			args:     []string{"--servers", "flag-host", "--database", "flagdb"},
			servers:  "flag-host",
			port:     6543,
			database: "flagdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := append([]string{"--env-file", envFile}, tt.args...)
			s, err := loadSettings(testFlags(t, args...))
			if err != nil {
				t.Fatalf("loadSettings: %v", err)
			}
			if got := strings.Join(s.Demo.Servers, ","); got != tt.servers {
				t.Errorf("Servers = %q, want %q", got, tt.servers)
			}
			if s.Demo.Port != tt.port {
				t.Errorf("Port = %d, want %d", s.Demo.Port, tt.port)
			}
			if s.Demo.Database != tt.database {
				t.Errorf("Database = %q, want %q", s.Demo.Database, tt.database)
			}
		})
	}
}

func TestLoadSettings_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		field string
	}{
		{name: "port not a number", env: map[string]string{keyPort: "abc"}, field: keyPort},
		{name: "background not a bool", env: map[string]string{keyBackground: "maybe"}, field: keyBackground},
		{name: "baseline garbage", env: map[string]string{keyBaseline: "soon"}, field: keyBaseline},
		{name: "total minutes garbage", args: []string{"--total-minutes", "forever"}, field: keyTotalMinutes},
		{name: "brute force count", env: map[string]string{keyBruteAttempt: "lots"}, field: keyBruteAttempt},
		{name: "flag overrides bad environment", args: []string{"--brute-force-rate", "0"}, env: map[string]string{keyBruteRate: "fast"}, field: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := append([]string{"--env-file", ""}, tt.args...)
			_, err := loadSettings(testFlags(t, args...))
			if tt.field == "" {
				// A changed flag overrides the bad environment value.
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *config.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *config.ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestLoadSettings_MissingEnvFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.env")
	if _, err := loadSettings(testFlags(t, "--env-file", missing)); err == nil {
		t.Fatal("expected an error for a missing explicit env file")
	}
}

func TestLoadSettings_DefaultEnvFileOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := loadSettings(testFlags(t)); err != nil {
		t.Fatalf("missing default .env should be ignored: %v", err)
	}
}

func TestLoadSettings_ValidatedConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(keyServers, "db1")
	t.Setenv(keyUser, "demo")
	t.Setenv(keyPassword, "secret")

	s, err := loadSettings(testFlags(t, "--env-file", "", "--scripts-dir", dir))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if err := s.Demo.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	s, err = loadSettings(testFlags(t, "--env-file", "", "--scripts-dir", dir, "--intensity", "ultra"))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	var ce *config.ConfigError
	if err := s.Demo.Validate(); !errors.As(err, &ce) {
		t.Fatalf("expected a ConfigError for intensity ultra, got %v", err)
	}
}
