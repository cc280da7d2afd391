// Package config provides Viper-based configuration loading for the trivia server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TransportConfig holds the WebSocket listener settings.
type TransportConfig struct {
	// Host is the bind address for the game listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the game listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path that is upgraded to a WebSocket.
	Path string `mapstructure:"path"`
	// ReadLimit is the largest inbound frame accepted, in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// HandshakeTimeout bounds the HTTP upgrade.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// SendBuffer is the number of frames queued per connection before it is dropped.
	SendBuffer int `mapstructure:"send_buffer"`
	// EventBuffer is the capacity of the connect/receive/disconnect event channel.
	EventBuffer int `mapstructure:"event_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds the server loop and match rules.
type GameServerConfig struct {
	// PollTimeout is the longest the loop waits for a transport event per tick.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// StorageTimeout bounds every storage call made from the loop.
	StorageTimeout time.Duration `mapstructure:"storage_timeout"`
	// LeaderboardSize is the number of players returned by FetchLeaderboard.
	LeaderboardSize int `mapstructure:"leaderboard_size"`
	// DefaultAvatar is an image file given to newly created players; empty means no avatar.
	DefaultAvatar string `mapstructure:"default_avatar"`
	// DefaultAvatarExtension is the extension stored with DefaultAvatar.
	DefaultAvatarExtension string `mapstructure:"default_avatar_extension"`
	// MaxAvatarBytes is the largest accepted profile picture.
	MaxAvatarBytes int `mapstructure:"max_avatar_bytes"`
	// RatingDelta is awarded to the winner of a decided competitive match.
	RatingDelta int32 `mapstructure:"rating_delta"`
	// StartDelay is the wait between pairing and the first question.
	StartDelay time.Duration `mapstructure:"start_delay"`
	// RoundDuration is the length of a round when not both players answered.
	RoundDuration time.Duration `mapstructure:"round_duration"`
	// EarlyAdvanceFloor is how far the round clock is moved once both players answered.
	EarlyAdvanceFloor time.Duration `mapstructure:"early_advance_floor"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Addr returns the "host:port" metrics listen address.
func (m MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// HealthConfig controls the periodic maintenance jobs.
type HealthConfig struct {
	// Interval is the period of the database health probe.
	Interval time.Duration `mapstructure:"interval"`
	// Timeout bounds one probe.
	Timeout time.Duration `mapstructure:"timeout"`
	// StatsInterval is the period of the live-state log line.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateDatabase(c.Database),
		validateTransport(c.Transport),
		validateLogging(c.Logging),
		validateGameServer(c.GameServer),
		validateMetrics(c.Metrics),
		validateHealth(c.Health),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joinErrs(errs)
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if !validPort(t.Port) {
		errs = append(errs, fmt.Sprintf("transport.port must be 1-65535, got %d", t.Port))
	}
	if !strings.HasPrefix(t.Path, "/") {
		errs = append(errs, fmt.Sprintf("transport.path must start with '/', got %q", t.Path))
	}
	if t.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("transport.read_limit must be >= 1, got %d", t.ReadLimit))
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "transport.write_timeout must not be negative")
	}
	if t.HandshakeTimeout < 0 {
		errs = append(errs, "transport.handshake_timeout must not be negative")
	}
	if t.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("transport.send_buffer must be >= 1, got %d", t.SendBuffer))
	}
	if t.EventBuffer < 1 {
		errs = append(errs, fmt.Sprintf("transport.event_buffer must be >= 1, got %d", t.EventBuffer))
	}
	return joinErrs(errs)
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.PollTimeout <= 0 {
		errs = append(errs, "gameserver.poll_timeout must be > 0")
	}
	if g.StorageTimeout <= 0 {
		errs = append(errs, "gameserver.storage_timeout must be > 0")
	}
	if g.LeaderboardSize < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.leaderboard_size must be >= 1, got %d", g.LeaderboardSize))
	}
	if g.MaxAvatarBytes < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.max_avatar_bytes must be >= 1, got %d", g.MaxAvatarBytes))
	}
	if g.RatingDelta < 0 {
		errs = append(errs, fmt.Sprintf("gameserver.rating_delta must be >= 0, got %d", g.RatingDelta))
	}
	if g.StartDelay < 0 {
		errs = append(errs, "gameserver.start_delay must not be negative")
	}
	if g.RoundDuration <= 0 {
		errs = append(errs, "gameserver.round_duration must be > 0")
	}
	if g.EarlyAdvanceFloor < 0 || g.EarlyAdvanceFloor > g.RoundDuration {
		errs = append(errs, "gameserver.early_advance_floor must be within [0, round_duration]")
	}
	return joinErrs(errs)
}

func validateMetrics(m MetricsConfig) error {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if !validPort(m.Port) {
		errs = append(errs, fmt.Sprintf("metrics.port must be 1-65535, got %d", m.Port))
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics.path must start with '/', got %q", m.Path))
	}
	return joinErrs(errs)
}

func validateHealth(h HealthConfig) error {
	var errs []string
	if h.Interval <= 0 {
		errs = append(errs, "health.interval must be > 0")
	}
	if h.Timeout <= 0 {
		errs = append(errs, "health.timeout must be > 0")
	}
	if h.StatsInterval <= 0 {
		errs = append(errs, "health.stats_interval must be > 0")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with BRAINDUEL_ prefix
	v.SetEnvPrefix("BRAINDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "brainduel")
	v.SetDefault("database.password", "brainduel")
	v.SetDefault("database.name", "brainduel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("transport.host", "0.0.0.0")
	v.SetDefault("transport.port", 17091)
	v.SetDefault("transport.path", "/play")
	v.SetDefault("transport.read_limit", 11<<20)
	v.SetDefault("transport.write_timeout", "10s")
	v.SetDefault("transport.handshake_timeout", "10s")
	v.SetDefault("transport.send_buffer", 256)
	v.SetDefault("transport.event_buffer", 1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.poll_timeout", "10ms")
	v.SetDefault("gameserver.storage_timeout", "5s")
	v.SetDefault("gameserver.leaderboard_size", 10)
	v.SetDefault("gameserver.default_avatar", "")
	v.SetDefault("gameserver.default_avatar_extension", "png")
	v.SetDefault("gameserver.max_avatar_bytes", 10<<20)
	v.SetDefault("gameserver.rating_delta", 10)
	v.SetDefault("gameserver.start_delay", "3s")
	v.SetDefault("gameserver.round_duration", "15s")
	v.SetDefault("gameserver.early_advance_floor", "12s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "127.0.0.1")
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.timeout", "5s")
	v.SetDefault("health.stats_interval", "1m")
}
