package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// ScannerAPIKeys maps credential value -> scanner name. Issuance is
	// handled outside this service; keys arrive as NAME:KEY pairs.
	ScannerAPIKeys map[string]string

	Redis RedisConfig

	BatchWorkers   int
	LatestCacheTTL time.Duration
}

// RedisConfig holds connection settings for the latest-assessment cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("EVSCAN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:           addr,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSigningKey:  jwtSigningKey,
		ScannerAPIKeys: parseScannerKeys(os.Getenv("SCANNER_API_KEYS")),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		BatchWorkers:   envInt("BATCH_WORKERS", 8),
		LatestCacheTTL: envDuration("LATEST_CACHE_TTL", 5*time.Minute),
	}
}

// parseScannerKeys reads "name1:key1,name2:key2" into key -> name.
func parseScannerKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || key == "" {
			continue
		}
		keys[key] = name
	}
	return keys
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
