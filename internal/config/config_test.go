package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("CART_GUEST_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("expected development environment, got %q", cfg.App.Environment)
	}
	if cfg.Cart.GuestTTL != 7*24*time.Hour {
		t.Errorf("expected guest TTL 168h, got %v", cfg.Cart.GuestTTL)
	}
	if cfg.Cart.GuestHeader != "X-Guest-Cart-ID" {
		t.Errorf("expected guest header X-Guest-Cart-ID, got %q", cfg.Cart.GuestHeader)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_REFETCH_DELAY", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storefront.RefetchDelay != 250*time.Millisecond {
		t.Errorf("expected refetch delay 250ms, got %v", cfg.Storefront.RefetchDelay)
	}
	if len(cfg.Security.CORSAllowedOrigins) != 2 || cfg.Security.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.Security.CORSAllowedOrigins)
	}
	if cfg.Security.RateLimitPerMinute != 300 {
		t.Errorf("expected fallback rate limit 300, got %d", cfg.Security.RateLimitPerMinute)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.JWT.Secret = "short" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing redis host", func(c *Config) { c.Redis.Host = "" }},
		{"zero guest ttl", func(c *Config) { c.Cart.GuestTTL = 0 }},
		{"missing guest header", func(c *Config) { c.Cart.GuestHeader = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
