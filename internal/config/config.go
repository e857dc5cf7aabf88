// Package config loads keepstreak configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all keepstreak configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Scan     ScanConfig     `yaml:"scan"`
	Queue    QueueConfig    `yaml:"queue"`
	Notify   NotifyConfig   `yaml:"notify"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind      string `yaml:"bind"`
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"` // empty disables API auth
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file; resolved via store.DefaultDBPath() when empty
	DSN    string `yaml:"dsn"`    // postgres connection string
}

type ScanConfig struct {
	Schedule  string `yaml:"schedule"`   // cron spec
	Timezone  string `yaml:"timezone"`   // IANA name used to derive "today"
	FreezeCap int    `yaml:"freeze_cap"` // freezes granted per month
}

type QueueConfig struct {
	Driver     string `yaml:"driver"` // "memory" or "amqp"
	AMQPURL    string `yaml:"amqp_url"`
	AMQPQueue  string `yaml:"amqp_queue"`
	BufferSize int    `yaml:"buffer_size"`
}

type NotifyConfig struct {
	AppName        string        `yaml:"app_name"`
	RedisAddr      string        `yaml:"redis_addr"` // empty disables dedup
	DedupTTL       time.Duration `yaml:"dedup_ttl"`
	MQTTBroker     string        `yaml:"mqtt_broker"`
	MQTTTopic      string        `yaml:"mqtt_topic"`
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`
}

type LLMConfig struct {
	Provider     string  `yaml:"provider"` // "none", "claude-cli", "anthropic", "ollama"
	Model        string  `yaml:"model"`
	OllamaURL    string  `yaml:"ollama_url"`
	OllamaModel  string  `yaml:"ollama_model"`
	AnthropicKey string  `yaml:"anthropic_key"`
	RatePerMin   float64 `yaml:"rate_per_min"` // 0 disables throttling
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Scan: ScanConfig{
			Schedule:  "0 9 * * *",
			Timezone:  "Local",
			FreezeCap: 2,
		},
		Queue: QueueConfig{
			Driver:     "memory",
			AMQPQueue:  "keepstreak.notify",
			BufferSize: 64,
		},
		Notify: NotifyConfig{
			AppName:  "KeepStreak",
			DedupTTL: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:   "none",
			Model:      "haiku",
			RatePerMin: 6,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Location resolves Scan.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Scan.Timezone == "" || c.Scan.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Scan.Timezone, err)
	}
	return loc, nil
}

// DefaultPath returns ~/.keepstreak/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return home + "/.keepstreak/config.yaml"
}

// Load reads path over the defaults, then applies KEEPSTREAK_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Bind, "KEEPSTREAK_BIND")
	setString(&cfg.Server.JWTSecret, "KEEPSTREAK_JWT_SECRET")
	setString(&cfg.Database.Driver, "KEEPSTREAK_DB_DRIVER")
	setString(&cfg.Database.Path, "KEEPSTREAK_DB_PATH")
	setString(&cfg.Database.DSN, "KEEPSTREAK_DB_DSN")
	setString(&cfg.Scan.Schedule, "KEEPSTREAK_SCAN_SCHEDULE")
	setString(&cfg.Scan.Timezone, "KEEPSTREAK_TIMEZONE")
	setString(&cfg.Queue.Driver, "KEEPSTREAK_QUEUE_DRIVER")
	setString(&cfg.Queue.AMQPURL, "KEEPSTREAK_AMQP_URL")
	setString(&cfg.Notify.RedisAddr, "KEEPSTREAK_REDIS_ADDR")
	setString(&cfg.Notify.MQTTBroker, "KEEPSTREAK_MQTT_BROKER")
	setString(&cfg.Notify.TelegramToken, "KEEPSTREAK_TELEGRAM_TOKEN")
	setString(&cfg.LLM.Provider, "KEEPSTREAK_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "KEEPSTREAK_LLM_MODEL")
	setString(&cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Log.Level, "KEEPSTREAK_LOG_LEVEL")

	if v := os.Getenv("KEEPSTREAK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEEPSTREAK_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KEEPSTREAK_FREEZE_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEEPSTREAK_FREEZE_CAP: %w", err)
		}
		cfg.Scan.FreezeCap = n
	}
	if v := os.Getenv("KEEPSTREAK_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("KEEPSTREAK_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Notify.TelegramChatID = id
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
