package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TYPING_WINDOW", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("defaults = %q/%q", cfg.Port, cfg.RedisAddr)
	}
	if cfg.TypingWindow != 3*time.Second || cfg.ReapInterval != 30*time.Second {
		t.Errorf("durations = %v/%v", cfg.TypingWindow, cfg.ReapInterval)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a missing JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a missing ENCRYPTION_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("TYPING_WINDOW", "5s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.TypingWindow != 5*time.Second || cfg.RedisDB != 3 {
		t.Errorf("overrides = %q/%v/%d", cfg.Port, cfg.TypingWindow, cfg.RedisDB)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("TYPING_WINDOW", "soon")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TypingWindow != 3*time.Second {
		t.Errorf("bad duration fell through: %v", cfg.TypingWindow)
	}
}
