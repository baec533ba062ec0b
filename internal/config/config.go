// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/pix"
)

// Config is everything settlementd needs to start.
type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
	NATSURL     string
	JWTSecret   string
	TokenTTL    time.Duration

	// Merchant identity used when rendering instant-payment charges.
	Merchant Merchant

	PaynetTimeout     time.Duration
	PaynetMaxFailures int
	PaynetCooldown    time.Duration
}

// Merchant is the payee side of every charge payload.
type Merchant struct {
	PixKey     string
	PixKeyType pix.KeyType
	Name       string
	City       string
}

// FromEnv loads the configuration, applying defaults where an entry is
// missing.
func FromEnv() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),
		NATSURL:     envOr("NATS_URL", "nats://localhost:4222"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    envDuration("TOKEN_TTL", 12*time.Hour),
		Merchant: Merchant{
			PixKey:     os.Getenv("MERCHANT_PIX_KEY"),
			PixKeyType: pix.KeyType(envOr("MERCHANT_PIX_KEY_TYPE", string(pix.KeyRandom))),
			Name:       os.Getenv("MERCHANT_NAME"),
			City:       os.Getenv("MERCHANT_CITY"),
		},
		PaynetTimeout:     envDuration("PAYNET_TIMEOUT", 5*time.Second),
		PaynetMaxFailures: envInt("PAYNET_MAX_FAILURES", 5),
		PaynetCooldown:    envDuration("PAYNET_COOLDOWN", 30*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
