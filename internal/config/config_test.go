package config

import (
	"strings"
	"testing"
	"time"
)

func setPagingCreds(t *testing.T) {
	t.Helper()
	t.Setenv("QUIZROOM_TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("QUIZROOM_TELEGRAM_CHAT_ID", "chat")
}

func TestLoadDefaults(t *testing.T) {
	setPagingCreds(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "./data/quizroom.db" {
		t.Errorf("unexpected default db path %s", cfg.Database.Path)
	}
	if cfg.Room.HistoryBackfill != 50 {
		t.Errorf("expected backfill 50, got %d", cfg.Room.HistoryBackfill)
	}
	if cfg.Room.MaxMessageLength != 2000 {
		t.Errorf("expected max message length 2000, got %d", cfg.Room.MaxMessageLength)
	}
	if !cfg.Paging.Enabled || cfg.Paging.Cooldown != time.Minute {
		t.Errorf("unexpected paging defaults: %+v", cfg.Paging)
	}
	if cfg.Upload.MaxBytes != 3<<20 {
		t.Errorf("expected 3 MB upload cap, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	setPagingCreds(t)
	t.Setenv("QUIZROOM_HTTP_PORT", "9090")
	t.Setenv("QUIZROOM_ROOM_HISTORY_BACKFILL", "10")
	t.Setenv("QUIZROOM_PAGING_COOLDOWN", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port override 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Room.HistoryBackfill != 10 {
		t.Errorf("expected backfill override 10, got %d", cfg.Room.HistoryBackfill)
	}
	if cfg.Paging.Cooldown != 90*time.Second {
		t.Errorf("expected cooldown 90s, got %v", cfg.Paging.Cooldown)
	}
}

func TestLoadPagingWithoutCredentials(t *testing.T) {
	_, err := Load()
	if err == nil {
		t.Fatal("expected failure when paging enabled without credentials")
	}
	if !strings.Contains(err.Error(), "telegram") {
		t.Errorf("error should name the missing credentials, got %v", err)
	}
}

func TestLoadPagingDisabledSkipsCredentials(t *testing.T) {
	t.Setenv("QUIZROOM_PAGING_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paging.Enabled {
		t.Error("paging should be disabled")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	setPagingCreds(t)
	base, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"huge port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"ping >= read timeout", func(c *Config) { c.WebSocket.PingInterval = c.WebSocket.ReadTimeout }},
		{"zero backfill", func(c *Config) { c.Room.HistoryBackfill = 0 }},
		{"zero message length", func(c *Config) { c.Room.MaxMessageLength = 0 }},
		{"zero cooldown", func(c *Config) { c.Paging.Cooldown = 0 }},
		{"zero upload cap", func(c *Config) { c.Upload.MaxBytes = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}
