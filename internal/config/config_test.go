package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGIN", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("SHOP_TZ_OFFSET_HOURS", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.AllowedOrigin != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected default origin %s", cfg.AllowedOrigin)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.ShopTZOffsetHours != 8 {
		t.Fatalf("expected default shop offset 8, got %d", cfg.ShopTZOffsetHours)
	}
	if cfg.ReportCacheTTLSeconds != 60 {
		t.Fatalf("expected default cache TTL 60, got %d", cfg.ReportCacheTTLSeconds)
	}
}

func TestLoadClampsBadValues(t *testing.T) {
	t.Setenv("SHOP_TZ_OFFSET_HOURS", "99")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "abc")

	cfg := Load()
	if cfg.ShopTZOffsetHours != 8 {
		t.Fatalf("expected out-of-range offset to fall back to 8, got %d", cfg.ShopTZOffsetHours)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected negative TTL to fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.ReportCacheTTLSeconds != 60 {
		t.Fatalf("expected invalid cache TTL to fall back to 60, got %d", cfg.ReportCacheTTLSeconds)
	}
}

func TestAddress(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg := Load()
	if cfg.Address() != ":9191" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}
