package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	ListenAddr string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	MatchTTL     time.Duration

	ArchiveDatabaseURL string

	// SeedIdentities maps auth token to username.
	SeedIdentities map[string]string

	MessagesDir string

	WSSendBuffer   int
	WSReadLimit    int64
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		StoreBackend:    BackendMemory,
		MatchTTL:        7 * 24 * time.Hour,
		WSSendBuffer:    32,
		WSReadLimit:     8192,
		ShutdownTimeout: 10 * time.Second,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.ArchiveDatabaseURL = env("ARCHIVE_DATABASE_URL")
	cfg.MessagesDir = env("MESSAGES_DIR")
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))

	var err error
	if cfg.MatchTTL, err = durationEnv("MATCH_TTL", cfg.MatchTTL); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	if v := env("WS_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("WS_SEND_BUFFER must be a positive integer, got %q", v)
		}
		cfg.WSSendBuffer = n
	}
	if v := env("WS_READ_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("WS_READ_LIMIT must be a positive integer, got %q", v)
		}
		cfg.WSReadLimit = n
	}
	if cfg.SeedIdentities, err = parseIdentities(env("SEED_IDENTITIES")); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis store")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration like 24h, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseIdentities reads "token:username,token2:username2".
func parseIdentities(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitList(v) {
		token, name, ok := strings.Cut(pair, ":")
		token, name = strings.TrimSpace(token), strings.TrimSpace(name)
		if !ok || token == "" || name == "" {
			return nil, fmt.Errorf("SEED_IDENTITIES entry %q must be token:username", pair)
		}
		out[token] = name
	}
	return out, nil
}
