package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"VOXBRIEF_ADDR",
	"VOXBRIEF_AUTH_MODE",
	"VOXBRIEF_API_KEYS",
	"VOXBRIEF_TRUST_PROXY_HEADERS",
	"VOXBRIEF_CORS_ORIGINS",
	"VOXBRIEF_REDIS_URL",
	"VOXBRIEF_SESSION_KEY_PREFIX",
	"VOXBRIEF_SESSION_DEFAULT_TTL",
	"VOXBRIEF_CONFIDENCE_THRESHOLD",
	"VOXBRIEF_PROCESS_INTERIM",
	"VOXBRIEF_LIVE_MAX_JSON_MESSAGE_BYTES",
	"VOXBRIEF_LIVE_WS_PING_INTERVAL",
	"VOXBRIEF_LIVE_WS_WRITE_TIMEOUT",
	"VOXBRIEF_LIVE_WS_READ_TIMEOUT",
	"VOXBRIEF_READ_HEADER_TIMEOUT",
	"VOXBRIEF_READ_TIMEOUT",
	"VOXBRIEF_TOTAL_REQUEST_TIMEOUT",
	"VOXBRIEF_SHUTDOWN_GRACE_PERIOD",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXBRIEF_API_KEYS", "vb_sk_test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeRequired {
		t.Fatalf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeRequired)
	}
	if cfg.TrustProxyHeaders != false {
		t.Fatalf("TrustProxyHeaders = %v, want false", cfg.TrustProxyHeaders)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.SessionKeyPrefix != "session:" {
		t.Fatalf("SessionKeyPrefix = %q, want session:", cfg.SessionKeyPrefix)
	}
	if cfg.SessionDefaultTTL != 24*time.Hour {
		t.Fatalf("SessionDefaultTTL = %v, want 24h", cfg.SessionDefaultTTL)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("ConfidenceThreshold = %v, want 0.7", cfg.ConfidenceThreshold)
	}
	if cfg.ProcessInterim {
		t.Fatalf("ProcessInterim = true, want false")
	}
	if cfg.LiveMaxJSONMessageBytes != 64*1024 {
		t.Fatalf("LiveMaxJSONMessageBytes = %d, want 65536", cfg.LiveMaxJSONMessageBytes)
	}
	if cfg.LiveWSPingInterval != 20*time.Second {
		t.Fatalf("LiveWSPingInterval = %v, want 20s", cfg.LiveWSPingInterval)
	}
	if cfg.LiveWSWriteTimeout != 5*time.Second {
		t.Fatalf("LiveWSWriteTimeout = %v, want 5s", cfg.LiveWSWriteTimeout)
	}
	if cfg.LiveWSReadTimeout != 0 {
		t.Fatalf("LiveWSReadTimeout = %v, want 0", cfg.LiveWSReadTimeout)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.HandlerTimeout != 2*time.Minute {
		t.Fatalf("HandlerTimeout = %v, want 2m", cfg.HandlerTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXBRIEF_ADDR", ":9090")
	t.Setenv("VOXBRIEF_AUTH_MODE", "optional")
	t.Setenv("VOXBRIEF_API_KEYS", "k1,k2")
	t.Setenv("VOXBRIEF_TRUST_PROXY_HEADERS", "true")
	t.Setenv("VOXBRIEF_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("VOXBRIEF_REDIS_URL", "redis://cache.internal:6380/2")
	t.Setenv("VOXBRIEF_SESSION_KEY_PREFIX", "briefing:")
	t.Setenv("VOXBRIEF_SESSION_DEFAULT_TTL", "2h")
	t.Setenv("VOXBRIEF_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("VOXBRIEF_PROCESS_INTERIM", "true")
	t.Setenv("VOXBRIEF_LIVE_MAX_JSON_MESSAGE_BYTES", "77777")
	t.Setenv("VOXBRIEF_LIVE_WS_PING_INTERVAL", "9s")
	t.Setenv("VOXBRIEF_LIVE_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("VOXBRIEF_LIVE_WS_READ_TIMEOUT", "4s")
	t.Setenv("VOXBRIEF_READ_HEADER_TIMEOUT", "12s")
	t.Setenv("VOXBRIEF_READ_TIMEOUT", "33s")
	t.Setenv("VOXBRIEF_TOTAL_REQUEST_TIMEOUT", "90s")
	t.Setenv("VOXBRIEF_SHUTDOWN_GRACE_PERIOD", "31s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" || cfg.AuthMode != AuthModeOptional {
		t.Fatalf("Addr/AuthMode = %q/%q", cfg.Addr, cfg.AuthMode)
	}
	if cfg.RedisURL != "redis://cache.internal:6380/2" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.SessionKeyPrefix != "briefing:" || cfg.SessionDefaultTTL != 2*time.Hour {
		t.Fatalf("session store config mismatch: %q/%v", cfg.SessionKeyPrefix, cfg.SessionDefaultTTL)
	}
	if cfg.ConfidenceThreshold != 0.85 || !cfg.ProcessInterim {
		t.Fatalf("dispatcher config mismatch: %v/%v", cfg.ConfidenceThreshold, cfg.ProcessInterim)
	}
	if cfg.LiveMaxJSONMessageBytes != 77777 {
		t.Fatalf("LiveMaxJSONMessageBytes = %d", cfg.LiveMaxJSONMessageBytes)
	}
	if cfg.LiveWSPingInterval != 9*time.Second || cfg.LiveWSWriteTimeout != 3*time.Second || cfg.LiveWSReadTimeout != 4*time.Second {
		t.Fatalf("live ws timeout mismatch: %v/%v/%v", cfg.LiveWSPingInterval, cfg.LiveWSWriteTimeout, cfg.LiveWSReadTimeout)
	}
	if cfg.ReadHeaderTimeout != 12*time.Second || cfg.ReadTimeout != 33*time.Second || cfg.HandlerTimeout != 90*time.Second {
		t.Fatalf("server timeouts mismatch: %v/%v/%v", cfg.ReadHeaderTimeout, cfg.ReadTimeout, cfg.HandlerTimeout)
	}
	if cfg.ShutdownGracePeriod != 31*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 31s", cfg.ShutdownGracePeriod)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("APIKeys len=%d, want 2", len(cfg.APIKeys))
	}
	if _, ok := cfg.APIKeys["k1"]; !ok {
		t.Fatalf("expected API key k1")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if !cfg.TrustProxyHeaders {
		t.Fatalf("TrustProxyHeaders = false, want true")
	}
}

func TestLoadFromEnv_RequiredAuthNeedsAPIKeys(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXBRIEF_AUTH_MODE", "required")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "VOXBRIEF_API_KEYS") {
		t.Fatalf("error = %v, expected VOXBRIEF_API_KEYS in message", err)
	}
}

func TestLoadFromEnv_ParsesCSVOrigins(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXBRIEF_AUTH_MODE", "optional")
	t.Setenv("VOXBRIEF_CORS_ORIGINS", "https://one.example, https://two.example,,")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://two.example"]; !ok {
		t.Fatalf("missing https://two.example")
	}
}

func TestLoadFromEnv_InvalidDurationsAndBounds(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name: "invalid auth mode",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE": "sometimes",
			},
			errSubstr: "VOXBRIEF_AUTH_MODE",
		},
		{
			name: "invalid session ttl",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE":           "optional",
				"VOXBRIEF_SESSION_DEFAULT_TTL": "0s",
			},
			errSubstr: "VOXBRIEF_SESSION_DEFAULT_TTL",
		},
		{
			name: "confidence threshold above one",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE":            "optional",
				"VOXBRIEF_CONFIDENCE_THRESHOLD": "1.5",
			},
			errSubstr: "VOXBRIEF_CONFIDENCE_THRESHOLD",
		},
		{
			name: "invalid ws write timeout",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE":             "optional",
				"VOXBRIEF_LIVE_WS_WRITE_TIMEOUT": "0s",
			},
			errSubstr: "VOXBRIEF_LIVE_WS_WRITE_TIMEOUT",
		},
		{
			name: "negative ws read timeout",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE":            "optional",
				"VOXBRIEF_LIVE_WS_READ_TIMEOUT": "-1s",
			},
			errSubstr: "VOXBRIEF_LIVE_WS_READ_TIMEOUT",
		},
		{
			name: "invalid shutdown grace period",
			env: map[string]string{
				"VOXBRIEF_AUTH_MODE":             "optional",
				"VOXBRIEF_SHUTDOWN_GRACE_PERIOD": "0s",
			},
			errSubstr: "VOXBRIEF_SHUTDOWN_GRACE_PERIOD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}
