package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadRequiresProviderKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/openllm")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when no provider key is set")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/openllm")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultRateLimit != 100 {
		t.Errorf("expected default rate limit 100, got %d", cfg.DefaultRateLimit)
	}
	if cfg.OfferingCacheTTLSeconds != 60 {
		t.Errorf("expected default offering cache TTL 60, got %d", cfg.OfferingCacheTTLSeconds)
	}
	if cfg.TopUpAmount != 1000 {
		t.Errorf("expected default top-up 1000, got %d", cfg.TopUpAmount)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/openllm")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_RATE_LIMIT", "5")
	t.Setenv("ADMIN_TOKEN", "secret-admin")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DefaultRateLimit != 5 {
		t.Errorf("expected rate limit 5, got %d", cfg.DefaultRateLimit)
	}
	if cfg.AdminToken != "secret-admin" {
		t.Errorf("expected admin token override, got %q", cfg.AdminToken)
	}
}
