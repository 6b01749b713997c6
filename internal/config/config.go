package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	DatabasePath    string
	PageSize        int
	FetchRate       float64
	FetchBurst      int
	SessionLifetime time.Duration
	// Origins allowed to read the layout JSON cross-site. Empty disables CORS.
	AllowedOrigins []string
}

// Load reads the environment, pulling in a .env file first when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Addr:            getenv("ADDR", ":8080"),
		DatabasePath:    getenv("DATABASE_PATH", "bracket_engine.db"),
		PageSize:        50,
		FetchRate:       20,
		FetchBurst:      5,
		SessionLifetime: 24 * time.Hour,
	}

	var err error
	if cfg.PageSize, err = intEnv("PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	if cfg.FetchBurst, err = intEnv("FETCH_BURST", cfg.FetchBurst); err != nil {
		return nil, err
	}
	if v := os.Getenv("FETCH_RATE"); v != "" {
		if cfg.FetchRate, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid FETCH_RATE: %w", err)
		}
	}
	if v := os.Getenv("SESSION_LIFETIME"); v != "" {
		if cfg.SessionLifetime, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
		}
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
