// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/api needs to start.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	PGDSN          string
	AuthSecret     string
	TokenTTL       time.Duration
	GCSBucket      string
	MediaBaseURL   string
	GoogleClientID string
	RoleFailClosed bool
	RateBurst      int
	RatePerSec     int
	Debug          bool
}

// Load reads an optional .env file (or the files given) and then the environment.
// Real environment variables win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	var errs []error
	intVal := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: expected positive integer, got %q", key, raw))
			return def
		}
		return n
	}
	boolVal := func(key string) bool {
		raw := get(key, "")
		if raw == "" {
			return false
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: expected boolean, got %q", key, raw))
		}
		return b
	}

	cfg := Config{
		HTTPAddr:       get("CIVIC_HTTP_ADDR", ":8080"),
		GRPCAddr:       get("CIVIC_GRPC_ADDR", ""),
		PGDSN:          get("CIVIC_PG_DSN", ""),
		AuthSecret:     get("CIVIC_AUTH_SECRET", ""),
		GCSBucket:      get("CIVIC_GCS_BUCKET", ""),
		MediaBaseURL:   get("CIVIC_MEDIA_BASE_URL", "http://localhost:8080/media"),
		GoogleClientID: get("CIVIC_GOOGLE_CLIENT_ID", ""),
		RoleFailClosed: boolVal("CIVIC_ROLE_FAIL_CLOSED"),
		RateBurst:      intVal("CIVIC_RATE_BURST", 50),
		RatePerSec:     intVal("CIVIC_RATE_PER_SEC", 20),
		Debug:          boolVal("CIVIC_DEBUG"),
		TokenTTL:       24 * time.Hour,
	}
	if raw := get("CIVIC_TOKEN_TTL", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("CIVIC_TOKEN_TTL: expected positive duration, got %q", raw))
		} else {
			cfg.TokenTTL = d
		}
	}
	if cfg.AuthSecret == "" {
		errs = append(errs, errors.New("CIVIC_AUTH_SECRET is required"))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}
