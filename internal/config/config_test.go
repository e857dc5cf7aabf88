package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr() != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.Scan.FreezeCap != 2 {
		t.Errorf("FreezeCap = %d, want 2", cfg.Scan.FreezeCap)
	}
	if cfg.Queue.Driver != "memory" || cfg.Database.Driver != "sqlite" {
		t.Errorf("drivers = %q/%q", cfg.Queue.Driver, cfg.Database.Driver)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
scan:
  schedule: "*/15 * * * *"
  timezone: UTC
notify:
  app_name: SelfTracker
  dedup_ttl: 2h
llm:
  provider: ollama
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Scan.Schedule != "*/15 * * * *" || cfg.Scan.FreezeCap != 2 {
		t.Errorf("scan = %+v", cfg.Scan)
	}
	if cfg.Notify.AppName != "SelfTracker" || cfg.Notify.DedupTTL != 2*time.Hour {
		t.Errorf("notify = %+v", cfg.Notify)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location = %v, %v", loc, err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEEPSTREAK_PORT", "4000")
	t.Setenv("KEEPSTREAK_FREEZE_CAP", "3")
	t.Setenv("KEEPSTREAK_QUEUE_DRIVER", "amqp")
	t.Setenv("KEEPSTREAK_TELEGRAM_CHAT_ID", "-1001")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4000 || cfg.Scan.FreezeCap != 3 || cfg.Queue.Driver != "amqp" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Notify.TelegramChatID != -1001 {
		t.Errorf("TelegramChatID = %d", cfg.Notify.TelegramChatID)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("KEEPSTREAK_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric port")
	}
}
