package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Enabled reports whether a database is configured. Without DB_HOST or
// DATABASE_URL the service runs on in-memory stores.
func Enabled() bool {
	return os.Getenv("DB_HOST") != "" || os.Getenv("DATABASE_URL") != ""
}

// LoadConfigFromEnv reads the DB_* variables. Connection fields are ignored
// when DATABASE_URL is used, but the pool settings still apply.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:            envOr("DB_HOST", "localhost"),
		User:            envOr("DB_USER", "concierge"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        envOr("DB_NAME", "concierge"),
		SSLMode:         envOr("DB_SSLMODE", "disable"),
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	ints := []struct {
		key string
		def int
		dst func(int)
	}{
		{"DB_PORT", 5432, func(v int) { cfg.Port = v }},
		{"DB_MAX_CONNS", 10, func(v int) { cfg.MaxConns = int32(v) }},
		{"DB_MIN_CONNS", 1, func(v int) { cfg.MinConns = int32(v) }},
	}
	for _, f := range ints {
		raw := os.Getenv(f.key)
		if raw == "" {
			f.dst(f.def)
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("invalid %s %q", f.key, raw)
		}
		f.dst(v)
	}
	if cfg.MinConns > cfg.MaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.MinConns, cfg.MaxConns)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
