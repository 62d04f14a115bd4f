package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	// Session store backend.
	RedisURL          string
	SessionKeyPrefix  string
	SessionDefaultTTL time.Duration

	// Shadow dispatcher.
	ConfidenceThreshold float64
	ProcessInterim      bool

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/v1/live).
	LiveMaxJSONMessageBytes int64
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveWSReadTimeout       time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("VOXBRIEF_ADDR", ":8080"),
		AuthMode:                AuthMode(envOr("VOXBRIEF_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                 make(map[string]struct{}),
		TrustProxyHeaders:       envBoolOr("VOXBRIEF_TRUST_PROXY_HEADERS", false),
		RedisURL:                envOr("VOXBRIEF_REDIS_URL", "redis://localhost:6379/0"),
		SessionKeyPrefix:        envOr("VOXBRIEF_SESSION_KEY_PREFIX", "session:"),
		SessionDefaultTTL:       envDurationOr("VOXBRIEF_SESSION_DEFAULT_TTL", 24*time.Hour),
		ConfidenceThreshold:     envFloat64Or("VOXBRIEF_CONFIDENCE_THRESHOLD", 0.7),
		ProcessInterim:          envBoolOr("VOXBRIEF_PROCESS_INTERIM", false),
		CORSAllowedOrigins:      make(map[string]struct{}),
		LiveMaxJSONMessageBytes: envInt64Or("VOXBRIEF_LIVE_MAX_JSON_MESSAGE_BYTES", 64*1024),
		LiveWSPingInterval:      envDurationOr("VOXBRIEF_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("VOXBRIEF_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:       envDurationOr("VOXBRIEF_LIVE_WS_READ_TIMEOUT", 0),
		ReadHeaderTimeout:       envDurationOr("VOXBRIEF_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("VOXBRIEF_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("VOXBRIEF_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:     envDurationOr("VOXBRIEF_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("VOXBRIEF_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("VOXBRIEF_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("VOXBRIEF_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.RedisURL) == "" {
		return Config{}, fmt.Errorf("VOXBRIEF_REDIS_URL must not be empty")
	}
	if strings.TrimSpace(cfg.SessionKeyPrefix) == "" {
		return Config{}, fmt.Errorf("VOXBRIEF_SESSION_KEY_PREFIX must not be empty")
	}
	if cfg.SessionDefaultTTL <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_SESSION_DEFAULT_TTL must be > 0")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return Config{}, fmt.Errorf("VOXBRIEF_CONFIDENCE_THRESHOLD must be in (0, 1]")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("VOXBRIEF_API_KEYS must be set when VOXBRIEF_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
