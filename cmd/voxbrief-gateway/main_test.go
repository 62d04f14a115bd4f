package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/voxbrief/voxbrief/pkg/gateway/config"
	gatewayserver "github.com/voxbrief/voxbrief/pkg/gateway/server"
	"github.com/voxbrief/voxbrief/pkg/store"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		openStore: func(config.Config, *slog.Logger) (*store.Store, io.Closer, error) {
			t.Fatalf("openStore should not be called when config load fails")
			return nil, nil, nil
		},
		newGateway: func(config.Config, *store.Store, *slog.Logger) *gatewayserver.Server {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunMain_ReturnsNonZeroWhenRedisUnavailable(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{RedisURL: "redis://127.0.0.1:1/0"}, nil
		},
		openStore: func(config.Config, *slog.Logger) (*store.Store, io.Closer, error) {
			return nil, nil, errors.New("ping redis: connection refused")
		},
		newGateway: func(config.Config, *store.Store, *slog.Logger) *gatewayserver.Server {
			t.Fatalf("newGateway should not be called when the store cannot open")
			return nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestGatewayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(store.Config{
		Client:     client,
		KeyPrefix:  "session:",
		DefaultTTL: time.Hour,
		Logger:     logger,
	})

	gw := gatewayserver.New(config.Config{
		AuthMode: config.AuthModeDisabled,
		APIKeys:  map[string]struct{}{},

		CORSAllowedOrigins:  map[string]struct{}{},
		SessionDefaultTTL:   24 * time.Hour,
		ConfidenceThreshold: 0.7,
		ReadHeaderTimeout:   time.Second,
		ReadTimeout:         time.Second,
		HandlerTimeout:      time.Minute,

		LiveMaxJSONMessageBytes: 64 * 1024,
		LiveWSPingInterval:      20 * time.Second,
		LiveWSWriteTimeout:      5 * time.Second,
	}, st, logger)
	t.Cleanup(gw.Close)

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want %d", resp.StatusCode, http.StatusOK)
	}
}
