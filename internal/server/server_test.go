package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// client never keeps idle connections, so no transport goroutines outlive a test
var client = &http.Client{
	Transport: &http.Transport{DisableKeepAlives: true},
	Timeout:   5 * time.Second,
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Port != 18765 {
		t.Errorf("Expected port 18765, got %d", config.Port)
	}

	if config.ReadTimeout != 30*time.Second {
		t.Errorf("Expected ReadTimeout 30s, got %v", config.ReadTimeout)
	}

	if config.WriteTimeout != 60*time.Second {
		t.Errorf("Expected WriteTimeout 60s, got %v", config.WriteTimeout)
	}

	if config.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected ShutdownTimeout 5s, got %v", config.ShutdownTimeout)
	}
}

func TestNew(t *testing.T) {
	config := DefaultConfig()
	server := New(config, nil)

	if server == nil {
		t.Fatal("Expected server to be created")
	}

	if server.port != config.Port {
		t.Errorf("Expected port %d, got %d", config.Port, server.port)
	}

	if server.running {
		t.Error("Expected server to not be running initially")
	}

	if server.Router() == nil || server.Registry() == nil {
		t.Error("Expected router and registry to be created")
	}
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	config := DefaultConfig()
	config.Port = 0 // Use random port
	server := New(config, nil)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if !server.IsRunning() {
		t.Error("Expected server to be running")
	}

	if server.Port() == 0 {
		t.Error("Expected non-zero port")
	}

	// Try to start again (should fail)
	if err := server.Start(); err == nil {
		t.Error("Expected error when starting already running server")
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Failed to stop server: %v", err)
	}

	if server.IsRunning() {
		t.Error("Expected server to be stopped")
	}

	// Stop again (should succeed, no-op)
	if err := server.Stop(); err != nil {
		t.Errorf("Expected no error when stopping already stopped server: %v", err)
	}
}

func TestURL(t *testing.T) {
	config := DefaultConfig()
	config.Port = 12345
	server := New(config, nil)

	expectedURL := "http://127.0.0.1:12345"
	if server.URL() != expectedURL {
		t.Errorf("Expected URL %s, got %s", expectedURL, server.URL())
	}
}

func TestServerServesRegisteredRoutes(t *testing.T) {
	defer goleak.VerifyNone(t)

	config := DefaultConfig()
	config.Port = 0
	server := New(config, nil)

	server.Router().Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	resp, err := client.Get(server.URL() + "/api/ping")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "pong" {
		t.Errorf("Expected body 'pong', got %q", body)
	}

	resp, err = client.Get(server.URL() + "/api/missing")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := New(DefaultConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("Expected Go runtime metrics in /metrics output")
	}
}

func TestRecovererReturns500(t *testing.T) {
	server := New(DefaultConfig(), nil)
	server.Router().Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := corsMiddleware(testHandler)

	tests := []struct {
		name        string
		method      string
		origin      string
		allowOrigin string
		status      int
	}{
		{"localhost preflight", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusOK},
		{"loopback preflight", http.MethodOptions, "http://127.0.0.1:8080", "http://127.0.0.1:8080", http.StatusOK},
		{"foreign origin", http.MethodGet, "http://example.com", "", http.StatusTeapot},
		{"no origin", http.MethodGet, "", "", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.allowOrigin {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tt.allowOrigin, got)
			}
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestMultipleStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	config := DefaultConfig()
	config.Port = 0

	for i := 0; i < 3; i++ {
		server := New(config, nil)

		if err := server.Start(); err != nil {
			t.Fatalf("Iteration %d: Failed to start server: %v", i, err)
		}

		if err := server.Stop(); err != nil {
			t.Fatalf("Iteration %d: Failed to stop server: %v", i, err)
		}
	}
}

func TestPort(t *testing.T) {
	config := DefaultConfig()
	config.Port = 19999
	server := New(config, nil)

	// Before start, should return configured port
	if server.Port() != 19999 {
		t.Errorf("Expected port 19999 before start, got %d", server.Port())
	}

	// Start with port 0 to get random port
	config.Port = 0
	server = New(config, nil)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	if server.Port() == 0 {
		t.Error("Expected non-zero port after start")
	}
}
