package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("STORE_URL", "")
	t.Setenv("MONGO_DATABASE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("COUNTRY_CODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.StoreURL != "memory:" {
		t.Fatalf("StoreURL = %q, want %q", cfg.StoreURL, "memory:")
	}
	if cfg.MongoDatabase != "gatherly" {
		t.Fatalf("MongoDatabase = %q, want %q", cfg.MongoDatabase, "gatherly")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.CountryCode != "1" {
		t.Fatalf("CountryCode = %q, want %q", cfg.CountryCode, "1")
	}
}

func TestLoad_RejectsNonDigitCountryCode(t *testing.T) {
	t.Setenv("COUNTRY_CODE", "+1")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for COUNTRY_CODE %q", "+1")
	}
}
