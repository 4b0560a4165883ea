package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

const (
	defaultEnvFile     = ".env"
	defaultHistoryPath = "pganomaly.db"
	defaultListenAddr  = "127.0.0.1:8090"
	defaultAPIURL      = "http://127.0.0.1:8090"
)

// Environment keys. The POSTGRES_* and demo keys keep the names the demo
// container has always used; PGANOMALY_* keys are local additions.
const (
	keyServers      = "POSTGRES_SERVERS"
	keyUser         = "POSTGRES_USER"
	keyPassword     = "POSTGRES_PASSWORD"
	keyDatabase     = "POSTGRES_DATABASE"
	keyPort         = "POSTGRES_PORT"
	keyBackground   = "ENABLE_BACKGROUND_TRAFFIC"
	keyIntensity    = "BACKGROUND_TRAFFIC_INTENSITY"
	keyBaseline     = "BASELINE_DURATION"
	keySpacing      = "ANOMALY_SPACING"
	keyTotalMinutes = "TOTAL_DURATION_MINUTES"
	keyBruteForce   = "ENABLE_BRUTE_FORCE"
	keyBruteAttempt = "BRUTE_FORCE_ATTEMPTS"
	keyScriptsDir   = "SQL_TESTS_DIR"

	keyDriver       = "PGANOMALY_DRIVER"
	keySSLMode      = "PGANOMALY_SSLMODE"
	keyBruteRate    = "PGANOMALY_BRUTE_FORCE_RATE"
	keyStopTimeout  = "PGANOMALY_STOP_TIMEOUT"
	keyHistoryDB    = "PGANOMALY_HISTORY_DB"
	keyRedisAddr    = "PGANOMALY_REDIS_ADDR"
	keyStatusTTL    = "PGANOMALY_STATUS_TTL"
	keyListenAddr   = "PGANOMALY_LISTEN_ADDR"
	keyAPIURL       = "PGANOMALY_API_URL"
	keyOTLPEndpoint = "PGANOMALY_OTLP_ENDPOINT"
	keyLogFormat    = "PGANOMALY_LOG_FORMAT"
	keyLogLevel     = "PGANOMALY_LOG_LEVEL"
)

// flagKeys maps flag names to the configuration key they override.
var flagKeys = map[string]string{
	"servers":           keyServers,
	"user":              keyUser,
	"password":          keyPassword,
	"database":          keyDatabase,
	"port":              keyPort,
	"background":        keyBackground,
	"intensity":         keyIntensity,
	"baseline":          keyBaseline,
	"spacing":           keySpacing,
	"total-minutes":     keyTotalMinutes,
	"brute-force":       keyBruteForce,
	"brute-force-count": keyBruteAttempt,
	"scripts-dir":       keyScriptsDir,
	"driver":            keyDriver,
	"sslmode":           keySSLMode,
	"brute-force-rate":  keyBruteRate,
	"stop-timeout":      keyStopTimeout,
	"history-db":        keyHistoryDB,
	"redis-addr":        keyRedisAddr,
	"status-ttl":        keyStatusTTL,
	"listen":            keyListenAddr,
	"api-url":           keyAPIURL,
	"otlp-endpoint":     keyOTLPEndpoint,
	"log-format":        keyLogFormat,
	"log-level":         keyLogLevel,
}

// Settings is everything the CLI resolves from flags, the environment and
// the .env file.
type Settings struct {
	Demo config.Config

	HistoryPath  string
	RedisAddr    string
	StatusTTL    time.Duration
	ListenAddr   string
	APIURL       string
	OTLPEndpoint string
	LogFormat    string
	LogLevel     string
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault(keyDatabase, d.Database)
	v.SetDefault(keyPort, d.Port)
	v.SetDefault(keyBackground, d.BackgroundEnabled)
	v.SetDefault(keyIntensity, d.Intensity)
	v.SetDefault(keyBaseline, int(d.Baseline.Seconds()))
	v.SetDefault(keySpacing, int(d.Spacing.Seconds()))
	v.SetDefault(keyTotalMinutes, int(d.TotalDuration.Minutes()))
	v.SetDefault(keyBruteForce, false)
	v.SetDefault(keyBruteAttempt, d.BruteForce.Attempts)
	v.SetDefault(keyScriptsDir, d.ScriptsDir)
	v.SetDefault(keyDriver, string(d.Driver))
	v.SetDefault(keySSLMode, d.SSLMode)
	v.SetDefault(keyBruteRate, d.BruteForce.PerSecond)
	v.SetDefault(keyStopTimeout, d.StopTimeout.String())
	v.SetDefault(keyHistoryDB, defaultHistoryPath)
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyAPIURL, defaultAPIURL)
	v.SetDefault(keyLogFormat, "json")
	v.SetDefault(keyLogLevel, "info")
}

// newViper layers flags over the environment over the .env file over
// defaults. A missing default .env file is ignored; a missing file named
// with --env-file is an error.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	envFile := defaultEnvFile
	explicit := false
	if f := flags.Lookup("env-file"); f != nil {
		envFile = f.Value.String()
		explicit = f.Changed
	}
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		}
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// loadSettings resolves Settings. The demo configuration is not validated
// here; commands validate what they use.
func loadSettings(flags *pflag.FlagSet) (Settings, error) {
	v, err := newViper(flags)
	if err != nil {
		return Settings{}, err
	}

	cfg := config.Default()
	cfg.Driver = sqlexec.Driver(strings.ToLower(strings.TrimSpace(v.GetString(keyDriver))))
	cfg.Servers = config.ParseServers(v.GetString(keyServers))
	cfg.User = v.GetString(keyUser)
	cfg.Password = v.GetString(keyPassword)
	cfg.Database = v.GetString(keyDatabase)
	cfg.SSLMode = v.GetString(keySSLMode)
	cfg.Intensity = strings.ToLower(strings.TrimSpace(v.GetString(keyIntensity)))
	cfg.ScriptsDir = v.GetString(keyScriptsDir)

	if cfg.Port, err = intValue(v, keyPort); err != nil {
		return Settings{}, err
	}
	if cfg.BackgroundEnabled, err = boolValue(v, keyBackground); err != nil {
		return Settings{}, err
	}
	if cfg.Baseline, err = durationValue(v, keyBaseline, time.Second); err != nil {
		return Settings{}, err
	}
	if cfg.Spacing, err = durationValue(v, keySpacing, time.Second); err != nil {
		return Settings{}, err
	}
	if cfg.TotalDuration, err = durationValue(v, keyTotalMinutes, time.Minute); err != nil {
		return Settings{}, err
	}
	if cfg.StopTimeout, err = durationValue(v, keyStopTimeout, time.Second); err != nil {
		return Settings{}, err
	}
	if cfg.BruteForce.Enabled, err = boolValue(v, keyBruteForce); err != nil {
		return Settings{}, err
	}
	if cfg.BruteForce.Attempts, err = intValue(v, keyBruteAttempt); err != nil {
		return Settings{}, err
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(keyBruteRate)), 64)
	if err != nil {
		return Settings{}, &config.ConfigError{Field: keyBruteRate, Value: v.GetString(keyBruteRate), Reason: "must be a number"}
	}
	cfg.BruteForce.PerSecond = rate

	s := Settings{
		Demo:         cfg,
		HistoryPath:  v.GetString(keyHistoryDB),
		RedisAddr:    v.GetString(keyRedisAddr),
		ListenAddr:   v.GetString(keyListenAddr),
		APIURL:       v.GetString(keyAPIURL),
		OTLPEndpoint: v.GetString(keyOTLPEndpoint),
		LogFormat:    v.GetString(keyLogFormat),
		LogLevel:     v.GetString(keyLogLevel),
	}
	if raw := v.GetString(keyStatusTTL); raw != "" {
		if s.StatusTTL, err = durationValue(v, keyStatusTTL, time.Second); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &config.ConfigError{Field: key, Value: raw, Reason: "must be an integer"}
	}
	return n, nil
}

func boolValue(v *viper.Viper, key string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &config.ConfigError{Field: key, Value: raw, Reason: "must be true or false"}
	}
	return b, nil
}

// durationValue accepts a bare number in unit or a Go duration string.
func durationValue(v *viper.Viper, key string, unit time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n * float64(unit)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &config.ConfigError{Field: key, Value: raw, Reason: "must be a number or a duration such as 90s"}
	}
	return d, nil
}

// registerConnectionFlags adds the flags every database command shares.
func registerConnectionFlags(fs *pflag.FlagSet) {
	fs.String("servers", "", "comma separated server list ("+keyServers+")")
	fs.String("user", "", "database user ("+keyUser+")")
	fs.String("password", "", "database password ("+keyPassword+")")
	fs.String("database", config.DefaultDatabase, "database name ("+keyDatabase+")")
	fs.Int("port", sqlexec.DefaultPort, "server port ("+keyPort+")")
	fs.String("sslmode", sqlexec.DefaultSSLMode, "TLS mode ("+keySSLMode+")")
	fs.String("driver", string(sqlexec.DriverPostgres), "postgres or sqlite3 ("+keyDriver+")")
}

// registerDemoFlags adds the flags of the run command.
func registerDemoFlags(fs *pflag.FlagSet) {
	registerConnectionFlags(fs)
	d := config.Default()
	fs.Bool("background", d.BackgroundEnabled, "run background traffic ("+keyBackground+")")
	fs.String("intensity", d.Intensity, "background intensity: low, medium, high ("+keyIntensity+")")
	fs.String("baseline", strconv.Itoa(int(d.Baseline.Seconds())), "baseline seconds or duration ("+keyBaseline+")")
	fs.String("spacing", strconv.Itoa(int(d.Spacing.Seconds())), "spacing between scenarios, seconds or duration ("+keySpacing+")")
	fs.String("total-minutes", strconv.Itoa(int(d.TotalDuration.Minutes())), "scenario phase length, minutes or duration ("+keyTotalMinutes+")")
	fs.Bool("brute-force", false, "add the brute-force login scenario ("+keyBruteForce+")")
	fs.Int("brute-force-count", d.BruteForce.Attempts, "login attempts per brute-force execution ("+keyBruteAttempt+")")
	fs.Float64("brute-force-rate", d.BruteForce.PerSecond, "brute-force attempts per second ("+keyBruteRate+")")
	fs.String("stop-timeout", d.StopTimeout.String(), "wait for background traffic to stop ("+keyStopTimeout+")")
	fs.String("scripts-dir", d.ScriptsDir, "directory of SQL scripts ("+keyScriptsDir+")")
}
