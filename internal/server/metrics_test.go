package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/quietmail/gmail-mcp/internal/instrumentation"
)

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("creating test provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func createDisabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("creating disabled provider: %v", err)
	}
	return provider
}

func TestNewMetricsServer(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		srv, err := NewMetricsServer(MetricsServerConfig{
			Addr:                    ":9090",
			Enabled:                 true,
			InstrumentationProvider: createTestProvider(t),
		})
		if err != nil {
			t.Fatalf("NewMetricsServer() error = %v", err)
		}
		if srv.Addr() != ":9090" {
			t.Errorf("Addr() = %q, want :9090", srv.Addr())
		}
	})

	t.Run("empty addr falls back to default", func(t *testing.T) {
		srv, err := NewMetricsServer(MetricsServerConfig{
			Enabled:                 true,
			InstrumentationProvider: createTestProvider(t),
		})
		if err != nil {
			t.Fatalf("NewMetricsServer() error = %v", err)
		}
		if srv.Addr() != DefaultMetricsAddr {
			t.Errorf("Addr() = %q, want %q", srv.Addr(), DefaultMetricsAddr)
		}
	})

	t.Run("nil provider rejected", func(t *testing.T) {
		_, err := NewMetricsServer(MetricsServerConfig{Addr: ":9090", Enabled: true})
		if err == nil || !strings.Contains(err.Error(), "instrumentation provider is required") {
			t.Errorf("NewMetricsServer() error = %v, want provider-required error", err)
		}
	})

	t.Run("disabled provider rejected", func(t *testing.T) {
		_, err := NewMetricsServer(MetricsServerConfig{
			Addr:                    ":9090",
			Enabled:                 true,
			InstrumentationProvider: createDisabledProvider(t),
		})
		if err == nil || !strings.Contains(err.Error(), "not enabled") {
			t.Errorf("NewMetricsServer() error = %v, want not-enabled error", err)
		}
	})
}

func TestMetricsServerStartWithReadySignal(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
	})
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}

	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
	case err := <-serveErr:
		t.Fatalf("StartWithReadySignal() error = %v before signaling ready", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not signal ready within 5s")
	}

	// After ready, Addr reports the bound port rather than :0.
	if strings.HasSuffix(srv.Addr(), ":0") {
		t.Errorf("Addr() = %q, want a resolved port", srv.Addr())
	}

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	if err := <-serveErr; err != nil && err != http.ErrServerClosed {
		t.Errorf("StartWithReadySignal() returned %v after shutdown", err)
	}
}

func TestMetricsServerShutdownWithoutStart(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    ":9090",
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
	})
	if err != nil {
		t.Fatalf("NewMetricsServer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() before Start() error = %v", err)
	}
}
