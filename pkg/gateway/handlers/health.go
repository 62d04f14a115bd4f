package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxbrief/voxbrief/pkg/gateway/config"
	"github.com/voxbrief/voxbrief/pkg/store"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
	Store  *store.Store
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Redis    string   `json:"redis"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.SessionDefaultTTL <= 0 {
		issues = append(issues, "session default ttl must be > 0")
	}
	if h.Config.ConfidenceThreshold < 0 || h.Config.ConfidenceThreshold > 1 {
		issues = append(issues, "confidence threshold must be within [0, 1]")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	redisStatus := "ok"
	if h.Store == nil {
		redisStatus = "unconfigured"
		issues = append(issues, "session store not configured")
	} else {
		ctx, cancel := pingContext(r)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			redisStatus = "unreachable"
			issues = append(issues, "redis ping failed: "+err.Error())
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Redis:    redisStatus,
		Issues:   issues,
	})
}

func pingContext(r *http.Request) (ctx context.Context, cancel func()) {
	return context.WithTimeout(r.Context(), 2*time.Second)
}
