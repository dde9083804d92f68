package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string   `mapstructure:"env"`       // current application environment (local, dev, production etc)
	TelegramAPIToken string   `mapstructure:"-"`         // Telegram API token loaded from environment
	BotDebug         bool     `mapstructure:"bot_debug"` // verbose Telegram API logging
	QuizAPI          QuizAPI  `mapstructure:"quiz_api"`  // quiz backend section
	DB               DB       `mapstructure:"database"`  // database configuration section
	HTTP             HTTP     `mapstructure:"http"`
	Sessions         Sessions `mapstructure:"sessions"`
	Display          Display  `mapstructure:"display"`
}

// QuizAPI configures the quiz backend client.
type QuizAPI struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // zero keeps the transport default
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// HTTP configures the health endpoint.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Sessions controls teardown of idle chat views.
type Sessions struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// Display controls how dates are shown.
type Display struct {
	Timezone string `mapstructure:"timezone"`
}

// Enabled reports whether a database is configured.
func (db DB) Enabled() bool {
	return db.URL != ""
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Location returns the display time zone, falling back to UTC.
func (d Display) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil || d.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Load reads configuration from .env, config files and environment variables.
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("bot_debug", false)
	v.SetDefault("quiz_api.base_url", "http://localhost:8000")
	v.SetDefault("quiz_api.timeout", "0s")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("http.addr", ":8081")
	v.SetDefault("sessions.idle_ttl", "2h")
	v.SetDefault("sessions.sweep_schedule", "@every 10m")
	v.SetDefault("display.timezone", "UTC")

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("bot_debug", "BOT_DEBUG")
	_ = v.BindEnv("quiz_api.base_url", "QUIZ_API_BASE_URL")
	_ = v.BindEnv("quiz_api.timeout", "QUIZ_API_TIMEOUT")
	_ = v.BindEnv("http.addr", "HTTP_ADDR")
	_ = v.BindEnv("sessions.idle_ttl", "SESSION_IDLE_TTL")
	_ = v.BindEnv("sessions.sweep_schedule", "SESSION_SWEEP_SCHEDULE")
	_ = v.BindEnv("display.timezone", "DISPLAY_TIMEZONE")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	// The database only backs the user registry and may be left out.
	cfg.DB.URL = v.GetString("database_url")

	if strings.TrimSpace(cfg.QuizAPI.BaseURL) == "" {
		return nil, errors.New("quiz_api.base_url must not be empty")
	}

	return &cfg, nil
}
