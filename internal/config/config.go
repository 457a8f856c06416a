package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	HTTPAddr      string
	StoreURL      string
	MongoDatabase string
	LogLevel      string
	CountryCode   string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		StoreURL:      getEnv("STORE_URL", "memory:"),
		MongoDatabase: getEnv("MONGO_DATABASE", "gatherly"),
		LogLevel:      strings.TrimSpace(getEnv("LOG_LEVEL", "info")),
		CountryCode:   strings.TrimSpace(getEnv("COUNTRY_CODE", "1")),
	}

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.StoreURL) == "" {
		return Config{}, fmt.Errorf("STORE_URL must not be empty")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "1"
	}
	for _, ch := range cfg.CountryCode {
		if ch < '0' || ch > '9' {
			return Config{}, fmt.Errorf("COUNTRY_CODE must be digits, got %q", cfg.CountryCode)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultValue
	}
	return v
}
