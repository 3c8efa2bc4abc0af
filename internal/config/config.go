package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz     QuizConfig     `yaml:"quiz" envPrefix:"QUIZ_"`
	Ambient  AmbientConfig  `yaml:"ambient" envPrefix:"AMBIENT_"`
	Avatar   AvatarConfig   `yaml:"avatar" envPrefix:"AVATAR_"`
	Ticket   TicketConfig   `yaml:"ticket" envPrefix:"TICKET_"`
}

type ServerConfig struct {
	Port            string `yaml:"port" env:"PORT"`
	ReadTimeout     string `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    string `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout string `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type QuizConfig struct {
	ID            string `yaml:"id" env:"ID"`
	TTL           string `yaml:"ttl" env:"TTL"`
	AdvanceDelay  string `yaml:"advance_delay" env:"ADVANCE_DELAY"`
	IdleTimeout   string `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	SweepInterval string `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// AmbientConfig configures the chat-completion upstream. APIKey is only
// ever read from here and never sent to clients.
type AmbientConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	Timeout string `yaml:"timeout" env:"TIMEOUT"`
	Model   string `yaml:"model" env:"MODEL"`
	Mode    string `yaml:"mode" env:"MODE"`
}

type AvatarConfig struct {
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	Timeout  string `yaml:"timeout" env:"TIMEOUT"`
	CacheTTL string `yaml:"cache_ttl" env:"CACHE_TTL"`
}

type TicketConfig struct {
	Scale float64 `yaml:"scale" env:"SCALE"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080", ReadTimeout: "15s", WriteTimeout: "45s", ShutdownTimeout: "5s"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Redis:  RedisConfig{TTL: "10m"},
		Quiz: QuizConfig{
			ID:            "ambient",
			TTL:           "10m",
			AdvanceDelay:  "2500ms",
			IdleTimeout:   "30m",
			SweepInterval: "1m",
		},
		Ambient: AmbientConfig{BaseURL: "https://api.ambient.xyz", Timeout: "30s", Model: "mini", Mode: "restricted"},
		Avatar:  AvatarConfig{BaseURL: "https://unavatar.io/twitter/", Timeout: "10s", CacheTTL: "24h"},
		Ticket:  TicketConfig{Scale: 3},
	}
}

// Load starts from Default, applies the YAML file at path (a missing file is
// not an error) and then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values that would only fail later at startup.
func (c Config) Validate() error {
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"redis.ttl":               c.Redis.TTL,
		"quiz.ttl":                c.Quiz.TTL,
		"quiz.advance_delay":      c.Quiz.AdvanceDelay,
		"quiz.idle_timeout":       c.Quiz.IdleTimeout,
		"quiz.sweep_interval":     c.Quiz.SweepInterval,
		"ambient.timeout":         c.Ambient.Timeout,
		"avatar.timeout":          c.Avatar.Timeout,
		"avatar.cache_ttl":        c.Avatar.CacheTTL,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config redis.db: must not be negative")
	}
	if c.Ticket.Scale < 0 {
		return fmt.Errorf("config ticket.scale: must not be negative")
	}
	switch c.Ambient.Mode {
	case "", "restricted", "playground":
	default:
		return fmt.Errorf("config ambient.mode: unknown mode %q", c.Ambient.Mode)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
