package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSEMBLY_STRICT_TARGET", "")
	t.Setenv("INTEGRITY_CHECK_TIMEOUT_MS", "")
	t.Setenv("ASSEMBLY_RATE_LIMIT", "")

	cfg := Load()

	if cfg.AssemblyStrictTarget {
		t.Error("strict target should default to false")
	}
	if cfg.IntegrityCheckTimeout != 2*time.Second {
		t.Errorf("integrity timeout = %v, want 2s", cfg.IntegrityCheckTimeout)
	}
	if cfg.AssemblyRateLimit != 10 {
		t.Errorf("assembly rate limit = %d, want 10", cfg.AssemblyRateLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ASSEMBLY_STRICT_TARGET", "true")
	t.Setenv("INTEGRITY_BATCH_SIZE", "10")
	t.Setenv("ALLOWED_IP_SUBNET", " 10.0.0.0/8 ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if !cfg.AssemblyStrictTarget {
		t.Error("strict target should be enabled")
	}
	if cfg.IntegrityBatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.IntegrityBatchSize)
	}
	if cfg.AllowedIPSubnet != "10.0.0.0/8" {
		t.Errorf("subnet = %q", cfg.AllowedIPSubnet)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("origins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	t.Setenv("SOME_BOOL", "maybe")

	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvInt = %d, want fallback 7", got)
	}
	if got := getEnvBool("SOME_BOOL", true); !got {
		t.Error("getEnvBool should fall back to true")
	}
}
