package config

import (
	"log/slog"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
	if cfg.SQLiteDBPath != "./data/tally.db" {
		t.Errorf("SQLiteDBPath = %q, want ./data/tally.db", cfg.SQLiteDBPath)
	}
	if cfg.HorizonFromYear != 2018 || cfg.HorizonToYear != 2025 {
		t.Errorf("horizon = %d-%d, want 2018-2025", cfg.HorizonFromYear, cfg.HorizonToYear)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HORIZON_FROM_YEAR", "2020")
	t.Setenv("HORIZON_TO_YEAR", "2030")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.HorizonFromYear != 2020 || cfg.HorizonToYear != 2030 {
		t.Errorf("horizon = %d-%d, want 2020-2030", cfg.HorizonFromYear, cfg.HorizonToYear)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = (%v, %v), want (debug, nil)", level, err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Port:                 "not-a-port",
		SQLiteDBPath:         "",
		HorizonFromYear:      2025,
		HorizonToYear:        2018,
		DefaultCurrencyLabel: "",
		DefaultCurrencyUnit:  "€",
		LogLevel:             "loud",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"invalid port", "database path", "precedes", "currency label", "log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestValidatePortRange(t *testing.T) {
	tests := []struct {
		port  string
		valid bool
	}{
		{"1", true},
		{"65535", true},
		{"0", false},
		{"65536", false},
		{"abc", false},
	}
	for _, tt := range tests {
		cfg := Load()
		cfg.Port = tt.port
		err := cfg.Validate()
		if tt.valid && err != nil {
			t.Errorf("Validate() with port %q error = %v, want nil", tt.port, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Validate() with port %q = nil, want error", tt.port)
		}
	}
}
