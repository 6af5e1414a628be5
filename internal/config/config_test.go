package config

import (
	"strings"
	"testing"
	"time"
)

func TestS3ConfigMissingRequired(t *testing.T) {
	cfg := S3Config{
		Endpoint: "https://storage.yandexcloud.net",
		Bucket:   "bucket",
	}
	missing := cfg.MissingRequired()

	want := []string{"S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"}
	if len(missing) != len(want) {
		t.Fatalf("expected %d missing fields, got %d (%v)", len(want), len(missing), missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("expected missing[%d]=%s, got %s", i, want[i], missing[i])
		}
	}
}

func TestS3ConfigDiagnostics(t *testing.T) {
	tests := []struct {
		name      string
		cfg       S3Config
		wantLevel string
		wantCode  string
	}{
		{"not configured", S3Config{}, "INFO", "s3_not_configured"},
		{"partial config", S3Config{Endpoint: "https://s3.example.com"}, "WARN", "s3_partial_config"},
		{"ready", S3Config{
			Endpoint:        "https://s3.example.com",
			Region:          "eu-central-1",
			Bucket:          "plans",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		}, "INFO", "s3_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, code, _ := tt.cfg.Diagnostics()
			if level != tt.wantLevel || code != tt.wantCode {
				t.Fatalf("expected %s/%s, got %s/%s", tt.wantLevel, tt.wantCode, level, code)
			}
		})
	}
}

func TestDiagnosticsSummaryHidesSecrets(t *testing.T) {
	summary := S3Config{AccessKeyID: "AKIA123", SecretAccessKey: "topsecret"}.DiagnosticsSummary()
	if strings.Contains(summary, "AKIA123") || strings.Contains(summary, "topsecret") {
		t.Fatalf("summary leaks secrets: %s", summary)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("WEEK_STARTS_ON", "")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "")
	t.Setenv("AI_MODE", "")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.AuthMode != AuthModeNone || cfg.AuthRequired {
		t.Errorf("expected auth none/not required, got %s/%t", cfg.AuthMode, cfg.AuthRequired)
	}
	if cfg.WeekStartsOn != time.Sunday {
		t.Errorf("expected week to start on Sunday, got %s", cfg.WeekStartsOn)
	}
	if cfg.SearchDefaultLimit != 50 || cfg.SearchMaxLimit != 200 {
		t.Errorf("unexpected search limits %d/%d", cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("expected 24h idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.AIMode != "mock" {
		t.Errorf("expected mock AI mode, got %s", cfg.AIMode)
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		t.Error("expected local CORS origins by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "password")
	t.Setenv("AUTH_REQUIRED", "1")
	t.Setenv("WEEK_STARTS_ON", "monday")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "500")
	t.Setenv("SEARCH_MAX_LIMIT", "100")

	cfg := Load()

	if cfg.AuthMode != AuthModePassword || !cfg.AuthRequired {
		t.Errorf("expected password/required, got %s/%t", cfg.AuthMode, cfg.AuthRequired)
	}
	if cfg.WeekStartsOn != time.Monday {
		t.Errorf("expected Monday, got %s", cfg.WeekStartsOn)
	}
	if cfg.SearchDefaultLimit != 50 {
		t.Errorf("expected out-of-range default limit to fall back to 50, got %d", cfg.SearchDefaultLimit)
	}
}

func TestLoadUnknownAuthModeFallsBack(t *testing.T) {
	t.Setenv("AUTH_MODE", "siwa")
	t.Setenv("AUTH_REQUIRED", "1")

	cfg := Load()
	if cfg.AuthMode != AuthModeNone || cfg.AuthRequired {
		t.Fatalf("expected none/not required, got %s/%t", cfg.AuthMode, cfg.AuthRequired)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes := parseTrustedProxies(" 10.0.0.0/8, 192.168.1.7 ,not-an-ip, ::1 ,")

	want := []string{"10.0.0.0/8", "192.168.1.7/32", "::1/128"}
	if len(prefixes) != len(want) {
		t.Fatalf("expected %d prefixes, got %v", len(want), prefixes)
	}
	for i, p := range prefixes {
		if p.String() != want[i] {
			t.Errorf("prefix %d: expected %s, got %s", i, want[i], p)
		}
	}

	if got := parseTrustedProxies(""); len(got) != 0 {
		t.Errorf("expected no trusted proxies by default, got %v", got)
	}
}
