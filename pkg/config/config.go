// Package config loads server configuration from the environment and
// per-game limit profiles from YAML.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds server configuration.
type Config struct {
	Port             string
	LogLevel         string
	DatabaseURL      string // Postgres baseline store; empty selects memory
	DocstorePath     string // SQLite document store; empty selects memory
	RedisAddr        string // shared rate limit buckets; empty selects memory
	AuthSecret       string // HS256 token secret
	AdminSubjects    []string
	ArchiveLocation  string // file://, s3:// or gs://; empty disables
	ProfilesDir      string // limit profile YAMLs
	GameID           string // selects profile_<gameID>.yaml; empty uses defaults
	MinClientVersion string
	RateLimitRPM     int
	RateLimitBurst   int
	OTLPEndpoint     string // empty disables telemetry
}

// Load reads configuration from environment variables, with development
// defaults for everything but secrets.
func Load() *Config {
	return &Config{
		Port:             getenv("PORT", "8080"),
		LogLevel:         getenv("LOG_LEVEL", "INFO"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DocstorePath:     os.Getenv("DOCSTORE_PATH"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AuthSecret:       os.Getenv("AUTH_SECRET"),
		AdminSubjects:    splitList(os.Getenv("ADMIN_SUBJECTS")),
		ArchiveLocation:  os.Getenv("ARCHIVE_LOCATION"),
		ProfilesDir:      getenv("PROFILES_DIR", "profiles"),
		GameID:           os.Getenv("GAME_ID"),
		MinClientVersion: os.Getenv("MIN_CLIENT_VERSION"),
		RateLimitRPM:     getenvInt("RATE_LIMIT_RPM", 120),
		RateLimitBurst:   getenvInt("RATE_LIMIT_BURST", 20),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
