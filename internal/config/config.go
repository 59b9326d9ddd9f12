// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           string
	AllowedOrigins string

	// JWTSecret signs viewer access tokens; EncryptionKeyHex is the 32-byte
	// AES key for encrypted messages and invite tokens, hex encoded.
	JWTSecret        string
	EncryptionKeyHex string

	// DatabaseDSN selects the Postgres store; empty means the in-memory
	// store (development only).
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TypingWindow time.Duration
	ReapInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		AllowedOrigins:   os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		EncryptionKeyHex: os.Getenv("ENCRYPTION_KEY"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getenvInt("REDIS_DB", 0),
		TypingWindow:     getenvDuration("TYPING_WINDOW", 3*time.Second),
		ReapInterval:     getenvDuration("REAP_INTERVAL", 30*time.Second),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EncryptionKeyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
