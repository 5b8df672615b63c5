package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"BRANCHING_INK_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	Buffer int    `env:"SYNC_BUFFER" envDefault:"64"`
	DBPath string `env:"DB_PATH" envDefault:"data/test.db"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("BRANCHING_INK_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithPrefix(t *testing.T) {
	t.Setenv(EnvPrefix+"PREFIXED_SYNC_BUFFER", "8")

	var cfg prefixedTestConfig
	if err := ParseEnvWithPrefix(&cfg, EnvPrefix+"PREFIXED_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Buffer != 8 {
		t.Fatalf("buffer = %d, want 8", cfg.Buffer)
	}
	if cfg.DBPath != "data/test.db" {
		t.Fatalf("db path = %q, want default", cfg.DBPath)
	}
}
