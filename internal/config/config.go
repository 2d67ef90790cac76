// Package config loads application configuration from a YAML file and
// CONTENTQ_* environment variables on top of compiled-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CONTENTQ_SERVER__PORT.
	EnvPrefix = "CONTENTQ_"

	// EnvConfigPath names the variable holding an optional YAML config path.
	EnvConfigPath = "CONTENTQ_CONFIG"

	envDelimiter = "__"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Auth      AuthConfig      `koanf:"auth"`
	CORS      CORSConfig      `koanf:"cors"`
	Processor ProcessorConfig `koanf:"processor"`
	Social    SocialConfig    `koanf:"social"`
	Broker    BrokerConfig    `koanf:"broker"`
	Content   ContentConfig   `koanf:"content"`
}

// ServerConfig configures the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the queue store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	Path            string        `koanf:"path"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig configures operator authentication.
// An empty JWTSecret leaves mutating routes open.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// CORSConfig configures allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ProcessorConfig configures the publishing processor.
type ProcessorConfig struct {
	Enabled       bool          `koanf:"enabled"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	StatsInterval time.Duration `koanf:"stats_interval"`
}

// SocialConfig configures social posting.
type SocialConfig struct {
	Enabled        bool             `koanf:"enabled"`
	PollInterval   time.Duration    `koanf:"poll_interval"`
	BatchSize      int              `koanf:"batch_size"`
	MaxAttempts    int              `koanf:"max_attempts"`
	InitialBackoff time.Duration    `koanf:"initial_backoff"`
	MaxBackoff     time.Duration    `koanf:"max_backoff"`
	BaseURL        string           `koanf:"base_url"`
	Mattermost     MattermostConfig `koanf:"mattermost"`
	Telegram       TelegramConfig   `koanf:"telegram"`
}

// MattermostConfig configures the Mattermost incoming webhook.
type MattermostConfig struct {
	WebhookURL string        `koanf:"webhook_url"`
	Username   string        `koanf:"username"`
	Timeout    time.Duration `koanf:"timeout"`
}

// TelegramConfig configures the Telegram bot.
type TelegramConfig struct {
	BotToken  string        `koanf:"bot_token"`
	ChatID    string        `koanf:"chat_id"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
}

// BrokerConfig configures lifecycle event publishing to RabbitMQ.
// An empty URL disables the broker.
type BrokerConfig struct {
	URL      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
}

// ContentConfig locates content sources checked before publishing.
type ContentConfig struct {
	Root string `koanf:"root"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "contentq.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{},
		},
		Processor: ProcessorConfig{
			Enabled:       true,
			PollInterval:  time.Minute,
			StatsInterval: 15 * time.Second,
		},
		Social: SocialConfig{
			PollInterval:   time.Minute,
			BatchSize:      20,
			MaxAttempts:    5,
			InitialBackoff: time.Minute,
			MaxBackoff:     time.Hour,
			Mattermost: MattermostConfig{
				Username: "contentq",
				Timeout:  10 * time.Second,
			},
			Telegram: TelegramConfig{
				RateLimit: 25,
				Timeout:   10 * time.Second,
			},
		},
		Broker: BrokerConfig{
			Exchange: "contentq.events",
		},
	}
}

// Load reads configuration. The YAML file named by CONTENTQ_CONFIG is
// optional; environment variables win over the file.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(EnvConfigPath))
}

// LoadFrom reads configuration from path (may be empty) and the environment.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil)
	if err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps CONTENTQ_SOCIAL__TELEGRAM__BOT_TOKEN to social.telegram.bot_token.
// List values are comma separated.
func envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, envDelimiter, ".")

	if _, ok := listKeys[key]; ok {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

var listKeys = map[string]struct{}{
	"cors.allowed_origins": {},
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if c.Social.Telegram.BotToken != "" && c.Social.Telegram.ChatID == "" {
		errs = append(errs, errors.New("social.telegram.chat_id is required with a bot token"))
	}
	if c.Social.Telegram.RateLimit < 0 {
		errs = append(errs, errors.New("social.telegram.rate_limit must not be negative"))
	}
	if c.Social.MaxAttempts < 1 {
		errs = append(errs, errors.New("social.max_attempts must be at least 1"))
	}
	if c.Social.InitialBackoff > c.Social.MaxBackoff {
		errs = append(errs, errors.New("social.initial_backoff must not exceed social.max_backoff"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
