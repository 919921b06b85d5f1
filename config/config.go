// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"

	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT"`
	Port           string      `mapstructure:"PORT"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS"`
	Version        string      `mapstructure:"VERSION"`
}

// RedisConfig holds Redis connection details. Redis is the persistence
// substrate for subscriber sets, snapshots and rate-limit state.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
	UseTLS   bool   `mapstructure:"USE_TLS"`
}

// WeatherConfig holds weather-provider API keys and client settings.
// A provider with an empty key is skipped in the fallback chain.
type WeatherConfig struct {
	OpenWeatherAPIKey string `mapstructure:"OPENWEATHER_API_KEY"`
	WeatherAPIKey     string `mapstructure:"WEATHERAPI_KEY"`
	TimeoutSeconds    int    `mapstructure:"TIMEOUT_SECONDS"`
}

// PushConfig holds Expo push transport settings.
type PushConfig struct {
	// URL is the Expo push endpoint; overridable for tests.
	URL string `mapstructure:"URL"`
	// BatchSize is the maximum number of messages per request (Expo limit 100).
	BatchSize      int `mapstructure:"BATCH_SIZE"`
	TimeoutSeconds int `mapstructure:"TIMEOUT_SECONDS"`
}

// NotifyConfig holds suppression rules for routine change notifications.
// Emergency alerts bypass both quiet hours and the rate window.
type NotifyConfig struct {
	// QuietHoursStart/End are local hours [0,23]; the window may wrap midnight.
	QuietHoursStart int `mapstructure:"QUIET_HOURS_START"`
	QuietHoursEnd   int `mapstructure:"QUIET_HOURS_END"`
	// MinIntervalMinutes is the minimum gap between two routine sends to one token.
	MinIntervalMinutes int `mapstructure:"MIN_INTERVAL_MINUTES"`
}

// PollerConfig holds polling-run settings.
type PollerConfig struct {
	IntervalMinutes int `mapstructure:"INTERVAL_MINUTES"`
	// MaxWorkers bounds concurrent per-coordinate processing within a run.
	MaxWorkers int `mapstructure:"MAX_WORKERS"`
	QueueSize  int `mapstructure:"QUEUE_SIZE"`
	// LockTTLSeconds bounds the per-coordinate poll lock so a crashed run
	// cannot wedge a coordinate forever.
	LockTTLSeconds         int `mapstructure:"LOCK_TTL_SECONDS"`
	ShutdownTimeoutSeconds int `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server  ServerConfig  `mapstructure:"SERVER"`
	Redis   RedisConfig   `mapstructure:"REDIS"`
	Weather WeatherConfig `mapstructure:"WEATHER"`
	Push    PushConfig    `mapstructure:"PUSH"`
	Notify  NotifyConfig  `mapstructure:"NOTIFY"`
	Poller  PollerConfig  `mapstructure:"POLLER"`
}

// IsProduction returns true if the application runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", string(EnvDevelopment))
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")

	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)

	v.SetDefault("WEATHER.TIMEOUT_SECONDS", 10)

	v.SetDefault("PUSH.URL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("PUSH.BATCH_SIZE", 100)
	v.SetDefault("PUSH.TIMEOUT_SECONDS", 30)

	v.SetDefault("NOTIFY.QUIET_HOURS_START", 23)
	v.SetDefault("NOTIFY.QUIET_HOURS_END", 7)
	v.SetDefault("NOTIFY.MIN_INTERVAL_MINUTES", 60)

	v.SetDefault("POLLER.INTERVAL_MINUTES", 15)
	v.SetDefault("POLLER.MAX_WORKERS", 4)
	v.SetDefault("POLLER.QUEUE_SIZE", 256)
	v.SetDefault("POLLER.LOCK_TTL_SECONDS", 120)
	v.SetDefault("POLLER.SHUTDOWN_TIMEOUT_SECONDS", 30)
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, binds environment variables to config struct fields,
// unmarshals the configuration, and validates it.
func LoadConfig() (*Config, error) {
	log := logger.GetLogger()
	v := viper.New()

	setDefaults(v)

	bindings := [][2]string{
		{"SERVER.ENVIRONMENT", "ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"WEATHER.OPENWEATHER_API_KEY", "OPENWEATHER_API_KEY"},
		{"WEATHER.WEATHERAPI_KEY", "WEATHERAPI_KEY"},
		{"WEATHER.TIMEOUT_SECONDS", "WEATHER_TIMEOUT_SECONDS"},
		{"PUSH.URL", "PUSH_URL"},
		{"PUSH.BATCH_SIZE", "PUSH_BATCH_SIZE"},
		{"PUSH.TIMEOUT_SECONDS", "PUSH_TIMEOUT_SECONDS"},
		{"NOTIFY.QUIET_HOURS_START", "NOTIFY_QUIET_HOURS_START"},
		{"NOTIFY.QUIET_HOURS_END", "NOTIFY_QUIET_HOURS_END"},
		{"NOTIFY.MIN_INTERVAL_MINUTES", "NOTIFY_MIN_INTERVAL_MINUTES"},
		{"POLLER.INTERVAL_MINUTES", "POLLER_INTERVAL_MINUTES"},
		{"POLLER.MAX_WORKERS", "POLLER_MAX_WORKERS"},
		{"POLLER.QUEUE_SIZE", "POLLER_QUEUE_SIZE"},
		{"POLLER.LOCK_TTL_SECONDS", "POLLER_LOCK_TTL_SECONDS"},
		{"POLLER.SHUTDOWN_TIMEOUT_SECONDS", "POLLER_SHUTDOWN_TIMEOUT_SECONDS"},
	}
	if err := bindEnvVars(v, bindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Weather.OpenWeatherAPIKey == "" && cfg.Weather.WeatherAPIKey == "" {
		log.Warnw("No weather provider API keys configured; every fetch will degrade to the fallback observation")
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %q", c.Server.Environment)
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Push.BatchSize < 1 {
		return fmt.Errorf("push batch size must be positive, got %d", c.Push.BatchSize)
	}
	if c.Notify.QuietHoursStart < 0 || c.Notify.QuietHoursStart > 23 ||
		c.Notify.QuietHoursEnd < 0 || c.Notify.QuietHoursEnd > 23 {
		return fmt.Errorf("quiet hours must be within [0,23], got %d-%d",
			c.Notify.QuietHoursStart, c.Notify.QuietHoursEnd)
	}
	if c.Notify.MinIntervalMinutes < 0 {
		return fmt.Errorf("notify min interval must be non-negative, got %d", c.Notify.MinIntervalMinutes)
	}
	if c.Poller.IntervalMinutes < 1 {
		return fmt.Errorf("poller interval must be at least 1 minute, got %d", c.Poller.IntervalMinutes)
	}
	if c.Poller.MaxWorkers < 1 {
		return fmt.Errorf("poller max workers must be positive, got %d", c.Poller.MaxWorkers)
	}
	if c.IsProduction() && c.Weather.OpenWeatherAPIKey == "" && c.Weather.WeatherAPIKey == "" {
		return fmt.Errorf("production requires at least one weather provider API key")
	}
	return nil
}
