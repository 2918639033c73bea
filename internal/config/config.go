package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"./data/telegram_note.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DefaultTZ   string `envconfig:"DEFAULT_TZ" default:"UTC"`  // input and display timezone
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"` // json|console
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	ReminderWorkers int     `envconfig:"REMINDER_WORKERS" default:"4"`
	SendRate        float64 `envconfig:"SEND_RATE" default:"25"` // outbound messages per second
	SendBurst       int     `envconfig:"SEND_BURST" default:"5"`
}

// Load reads an optional .env file, then environment variables into Config.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	var cfg Config
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return cfg, fmt.Errorf("load env file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (sqlite|postgres)", c.DBDriver)
	}
	if c.ReminderWorkers <= 0 {
		return errors.New("REMINDER_WORKERS must be positive")
	}
	if c.SendRate <= 0 || c.SendBurst <= 0 {
		return errors.New("SEND_RATE and SEND_BURST must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	return nil
}

// RequireBotToken fails when the bot token needed to talk to Telegram is missing.
func (c Config) RequireBotToken() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	return nil
}

// Location resolves DefaultTZ.
func (c Config) Location() (*time.Location, error) {
	return domain.ValidateTZ(c.DefaultTZ)
}
