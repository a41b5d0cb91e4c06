package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var managedKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_HOST", "STORE_TIMEOUT", "CONFLICT_RETRIES",
	"ID_PREFIX", "ID_FLOOR", "ID_MAX_ATTEMPTS", "ID_BACKOFF_BASE", "ASSIGN_STATUS",
	"DESCRIPTION_MIN", "DESCRIPTION_MAX", "STRICT_HOURS", "JWT_SECRET", "AUTH_REQUIRED",
	"NOTIFY_SINKS", "KAFKA_BROKERS", "SQS_QUEUE_URL", "SQS_QUEUE_NAME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080 but got %q", cfg.Port)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("expected default StoreTimeout=5s but got %v", cfg.StoreTimeout)
	}
	if cfg.IDPrefix != "CMPT" || cfg.IDFloor != 0 || cfg.IDMaxAttempts != 5 || cfg.IDBackoffBase != 100*time.Millisecond {
		t.Errorf("unexpected id defaults: %s %d %d %v", cfg.IDPrefix, cfg.IDFloor, cfg.IDMaxAttempts, cfg.IDBackoffBase)
	}
	if cfg.AssignStatus != "in-progress" || cfg.StrictHours {
		t.Errorf("unexpected lifecycle defaults: %s %v", cfg.AssignStatus, cfg.StrictHours)
	}
	if len(cfg.NotifySinks) != 1 || cfg.NotifySinks[0] != "log" {
		t.Errorf("expected log sink by default, got %v", cfg.NotifySinks)
	}
	if cfg.HasDatabase() {
		t.Error("expected no database without DATABASE_URL or DB_HOST")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("ID_BACKOFF_BASE", "2")
	t.Setenv("ASSIGN_STATUS", "assigned")
	t.Setenv("STRICT_HOURS", "true")
	t.Setenv("NOTIFY_SINKS", "log, Kafka")
	t.Setenv("KAFKA_BROKERS", "kafka:9092,kafka-2:9092")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/complaints")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	if cfg.StoreTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.StoreTimeout)
	}
	if cfg.IDBackoffBase != 2*time.Second {
		t.Errorf("expected bare seconds to parse, got %v", cfg.IDBackoffBase)
	}
	if !cfg.StrictHours || cfg.AssignStatus != "assigned" {
		t.Errorf("unexpected lifecycle settings: %v %s", cfg.StrictHours, cfg.AssignStatus)
	}
	if len(cfg.NotifySinks) != 2 || cfg.NotifySinks[1] != "kafka" || len(cfg.KafkaBrokers) != 2 {
		t.Errorf("unexpected notification settings: %v %v", cfg.NotifySinks, cfg.KafkaBrokers)
	}
	if cfg.DSN() != "postgres://app:secret@db:5432/complaints" {
		t.Errorf("expected DATABASE_URL to win, got %s", cfg.DSN())
	}
	if cfg.RedactedDSN() == cfg.DSN() {
		t.Error("expected the password to be redacted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"no retries", func(c *Config) { c.ConflictRetries = 0 }},
		{"bad prefix", func(c *Config) { c.IDPrefix = "CM-PT" }},
		{"negative floor", func(c *Config) { c.IDFloor = -1 }},
		{"bad assign status", func(c *Config) { c.AssignStatus = "resolved" }},
		{"min above max", func(c *Config) { c.DescriptionMin = 50; c.DescriptionMax = 10 }},
		{"auth without secret", func(c *Config) { c.AuthRequired = true }},
		{"unknown sink", func(c *Config) { c.NotifySinks = []string{"pager"} }},
		{"kafka without brokers", func(c *Config) { c.NotifySinks = []string{"kafka"} }},
		{"sqs without queue", func(c *Config) { c.NotifySinks = []string{"sqs"} }},
	}

	clearEnv(t)
	for _, test := range tests {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("baseline config invalid: %v", err)
		}
		test.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ID_PREFIX=TKT\n"), 0600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("ID_PREFIX")
	defer os.Unsetenv("ID_PREFIX")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	if cfg.IDPrefix != "TKT" {
		t.Errorf("expected prefix from .env, got %q", cfg.IDPrefix)
	}
}
