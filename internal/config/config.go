// Package config loads server settings from the environment. Every
// knob has a production default; Validate refuses startup on values
// that would only fail later at runtime.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "QUIZROOM"

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	Paging    PagingConfig
	Upload    UploadConfig
}

type HTTPConfig struct {
	Host         string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"./data/quizroom.db"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	ReadTimeout  time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
}

type RoomConfig struct {
	HistoryBackfill  int `envconfig:"ROOM_HISTORY_BACKFILL" default:"50"`
	MaxMessageLength int `envconfig:"ROOM_MAX_MESSAGE_LENGTH" default:"2000"`
}

type PagingConfig struct {
	Enabled       bool          `envconfig:"PAGING_ENABLED" default:"true"`
	BotToken      string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID        string        `envconfig:"TELEGRAM_CHAT_ID"`
	Cooldown      time.Duration `envconfig:"PAGING_COOLDOWN" default:"60s"`
	OperatorToken string        `envconfig:"OPERATOR_TOKEN"`
}

type UploadConfig struct {
	MaxBytes       int64  `envconfig:"UPLOAD_MAX_BYTES" default:"3145728"`
	StorageBaseURL string `envconfig:"UPLOAD_STORAGE_URL"`
}

// Load reads QUIZROOM_-prefixed environment variables over defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed the ping interval")
	}
	if c.Room.HistoryBackfill <= 0 {
		return fmt.Errorf("room history backfill must be positive")
	}
	if c.Room.MaxMessageLength <= 0 {
		return fmt.Errorf("room max message length must be positive")
	}
	if c.Paging.Enabled {
		if c.Paging.BotToken == "" || c.Paging.ChatID == "" {
			return fmt.Errorf("paging enabled without telegram credentials")
		}
		if c.Paging.Cooldown <= 0 {
			return fmt.Errorf("paging cooldown must be positive")
		}
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
