// Package config loads the application configuration and stores the bottle
// configuration of the rig.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvCocktailDBKey = "COCKTAILDB_API_KEY"
	EnvJWTSecret     = "BARROBOT_JWT_SECRET"
	EnvDatabaseDSN   = "BARROBOT_DATABASE_DSN"
	EnvMQTTBroker    = "BARROBOT_MQTT_BROKER"
)

// Config represents the application configuration
type Config struct {
	LogLevel    string `yaml:"log_level"`
	BottlesFile string `yaml:"bottles_file"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	MetricsConfig struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Hardware Hardware `yaml:"hardware"`

	CocktailDB struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Refresh string        `yaml:"refresh"` // cron expression, empty disables
	} `yaml:"cocktaildb"`

	Auth struct {
		JWTSecret    string   `yaml:"jwt_secret"`
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"auth"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		Topic    string `yaml:"topic"`
		ClientID string `yaml:"client_id"`
	} `yaml:"mqtt"`
}

// Hardware selects the actuation backend and its timing.
type Hardware struct {
	Backend       string        `yaml:"backend"` // noop or periph
	StepsPerRev   int           `yaml:"steps_per_rev"`
	Microstep     int           `yaml:"microstep"`
	StepDelay     time.Duration `yaml:"step_delay"`
	PressDuration time.Duration `yaml:"press_duration"`
	PressGap      time.Duration `yaml:"press_gap"`
}

// Default returns a configuration that runs on a laptop: sqlite, no GPIO,
// no broker.
func Default() *Config {
	c := &Config{
		LogLevel:    "info",
		BottlesFile: "bottles.yaml",
	}
	c.Server.Port = 5000
	c.MetricsConfig.Enabled = true
	c.MetricsConfig.Port = 9090
	c.MetricsConfig.Path = "/metrics"
	c.Database.Driver = "sqlite3"
	c.Database.DSN = "barrobot.db"
	c.Hardware = Hardware{
		Backend:       "noop",
		StepsPerRev:   200,
		Microstep:     8,
		StepDelay:     800 * time.Microsecond,
		PressDuration: 600 * time.Millisecond,
		PressGap:      200 * time.Millisecond,
	}
	c.CocktailDB.BaseURL = "https://www.thecocktaildb.com"
	c.CocktailDB.Timeout = 10 * time.Second
	c.MQTT.Topic = "barrobot/events"
	c.MQTT.ClientID = "barrobot"
	return c
}

// Load reads path over the defaults, then applies .env and environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.CocktailDB.APIKey, EnvCocktailDBKey)
	override(&c.Auth.JWTSecret, EnvJWTSecret)
	override(&c.Database.DSN, EnvDatabaseDSN)
	override(&c.MQTT.Broker, EnvMQTTBroker)
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Hardware.Backend {
	case "noop", "periph":
	default:
		return fmt.Errorf("unsupported hardware backend %q", c.Hardware.Backend)
	}
	if c.Hardware.StepsPerRev <= 0 || c.Hardware.Microstep <= 0 {
		return errors.New("steps_per_rev and microstep must be positive")
	}
	if c.CocktailDB.Refresh != "" {
		if _, err := cronexpr.Parse(c.CocktailDB.Refresh); err != nil {
			return fmt.Errorf("cocktaildb.refresh: %w", err)
		}
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
