package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

const (
	DefaultDatabase      = "adventureworks"
	DefaultIntensity     = string(LevelMedium)
	DefaultBaseline      = 180 * time.Second
	DefaultSpacing       = 300 * time.Second
	DefaultTotalDuration = 20 * time.Minute
	DefaultStopTimeout   = 5 * time.Second
	DefaultScriptsDir    = "sql_tests"
	DefaultBruteAttempts = 20
	DefaultBruteRate     = 2.0
)

// BruteForce configures the synthetic failed-login scenario.
type BruteForce struct {
	Enabled bool
	// Attempts is the number of login attempts per execution.
	Attempts int
	// PerSecond paces the attempts.
	PerSecond float64
}

// Config is the validated input to a demo run. It is built once by the CLI;
// nothing below the CLI reads the environment.
type Config struct {
	Driver   sqlexec.Driver
	Servers  []string
	User     string
	Password string
	Database string
	Port     int
	SSLMode  string

	Intensity         string
	BackgroundEnabled bool
	Baseline          time.Duration
	Spacing           time.Duration
	TotalDuration     time.Duration
	StopTimeout       time.Duration

	ScriptsDir string
	BruteForce BruteForce
}

// Default returns the stock demo settings.
func Default() Config {
	return Config{
		Driver:            sqlexec.DriverPostgres,
		Database:          DefaultDatabase,
		Port:              sqlexec.DefaultPort,
		SSLMode:           sqlexec.DefaultSSLMode,
		Intensity:         DefaultIntensity,
		BackgroundEnabled: true,
		Baseline:          DefaultBaseline,
		Spacing:           DefaultSpacing,
		TotalDuration:     DefaultTotalDuration,
		StopTimeout:       DefaultStopTimeout,
		ScriptsDir:        DefaultScriptsDir,
		BruteForce: BruteForce{
			Attempts:  DefaultBruteAttempts,
			PerSecond: DefaultBruteRate,
		},
	}
}

// ParseServers splits a comma separated server list, dropping blanks.
func ParseServers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration and returns the first problem as a
// *ConfigError.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return &ConfigError{Field: "servers", Reason: "no servers specified (POSTGRES_SERVERS)"}
	}
	switch c.Driver {
	case sqlexec.DriverPostgres, "":
		if c.User == "" {
			return &ConfigError{Field: "user", Reason: "no user specified (POSTGRES_USER)"}
		}
		if c.Password == "" {
			return &ConfigError{Field: "password", Reason: "no password specified (POSTGRES_PASSWORD)"}
		}
		if c.Port <= 0 || c.Port > 65535 {
			return &ConfigError{Field: "port", Value: fmt.Sprint(c.Port), Reason: "must be between 1 and 65535"}
		}
	case sqlexec.DriverSQLite:
	default:
		return &ConfigError{Field: "driver", Value: string(c.Driver), Reason: "must be postgres or sqlite3"}
	}
	if _, err := ProfileFor(c.Intensity); err != nil {
		return err
	}
	if c.Baseline < 0 {
		return &ConfigError{Field: "baseline", Value: c.Baseline.String(), Reason: "must not be negative"}
	}
	if c.Spacing < 0 {
		return &ConfigError{Field: "spacing", Value: c.Spacing.String(), Reason: "must not be negative"}
	}
	if c.TotalDuration < 0 {
		return &ConfigError{Field: "total_duration", Value: c.TotalDuration.String(), Reason: "must not be negative"}
	}
	if c.StopTimeout <= 0 {
		return &ConfigError{Field: "stop_timeout", Value: c.StopTimeout.String(), Reason: "must be positive"}
	}
	if c.BruteForce.Enabled {
		if c.BruteForce.Attempts <= 0 {
			return &ConfigError{Field: "brute_force_attempts", Value: fmt.Sprint(c.BruteForce.Attempts), Reason: "must be positive"}
		}
		if c.BruteForce.PerSecond <= 0 {
			return &ConfigError{Field: "brute_force_rate", Value: fmt.Sprint(c.BruteForce.PerSecond), Reason: "must be positive"}
		}
	}
	info, err := os.Stat(c.ScriptsDir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Field: "scripts_dir", Value: c.ScriptsDir, Reason: "test directory not found"}
	}
	return nil
}

// Targets expands the server list into connection targets sharing the
// credentials and database.
func (c Config) Targets() []sqlexec.Target {
	targets := make([]sqlexec.Target, 0, len(c.Servers))
	for _, s := range c.Servers {
		t := sqlexec.Target{
			Driver:   c.Driver,
			Host:     s,
			Port:     c.Port,
			Database: c.Database,
			User:     c.User,
			Password: c.Password,
			SSLMode:  c.SSLMode,
		}
		if c.Driver == sqlexec.DriverSQLite {
			t.Host = ""
			t.Database = s
		}
		targets = append(targets, t)
	}
	return targets
}
