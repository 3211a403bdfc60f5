package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:8080/"})

	if c.BaseURL() != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
	}
	if c.limiter != nil {
		t.Error("limiter should be nil when RateLimit is 0")
	}
}

func TestDoRequest_SetsHeaders(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "secret-key"})
	if _, err := c.Resources().List(context.Background()); err != nil {
		t.Fatalf("List() error: %v", err)
	}

	if got := captured.Header.Get(HeaderAPIKey); got != "secret-key" {
		t.Errorf("%s = %q, want %q", HeaderAPIKey, got, "secret-key")
	}
	if got := captured.Header.Get(HeaderRequestID); len(got) != 36 {
		t.Errorf("%s = %q, want a UUID", HeaderRequestID, got)
	}
	if captured.URL.Path != "/api/resources" {
		t.Errorf("path = %q, want /api/resources", captured.URL.Path)
	}
}

func TestConnect_SendsResourceHeaders(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	err := c.Resources().Connect(context.Background(), ConnectRequest{
		Service: "Postgres",
		Name:    "warehouse",
		Config:  map[string]string{"host": "db.internal", "port": "5432"},
	})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if captured.Method != http.MethodPost || captured.URL.Path != "/api/resource/connect" {
		t.Errorf("request = %s %s", captured.Method, captured.URL.Path)
	}
	if got := captured.Header.Get(HeaderService); got != "Postgres" {
		t.Errorf("%s = %q", HeaderService, got)
	}
	if got := captured.Header.Get(HeaderName); got != "warehouse" {
		t.Errorf("%s = %q", HeaderName, got)
	}

	var cfg map[string]string
	if err := json.Unmarshal([]byte(captured.Header.Get(HeaderConfig)), &cfg); err != nil {
		t.Fatalf("config header is not JSON: %v", err)
	}
	if cfg["host"] != "db.internal" || cfg["port"] != "5432" {
		t.Errorf("config = %v", cfg)
	}
}

func TestPreview_SendsObjectName(t *testing.T) {
	var object string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		object = r.Header.Get(HeaderObjectName)
		w.Write([]byte(`{"data":{"schema":{"fields":[]},"data":[]}}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	data, err := c.Resources().Preview(context.Background(), "r-1", "public.orders")
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	if object != "public.orders" {
		t.Errorf("%s = %q", HeaderObjectName, object)
	}
	if string(data) != `{"schema":{"fields":[]},"data":[]}` {
		t.Errorf("data = %s", data)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantCollision bool
		wantNotFound  bool
	}{
		{"conflict", http.StatusConflict, `{"message":"name taken"}`, "", true, false},
		{"coded conflict", http.StatusBadRequest, `{"code":"NAME_CONFLICT","message":"dup"}`, CodeNameConflict, true, false},
		{"not found", http.StatusNotFound, `{"code":"NOT_FOUND","message":"no such resource"}`, "NOT_FOUND", false, true},
		{"plain text", http.StatusInternalServerError, `boom`, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(Config{BaseURL: server.URL})
			err := c.Resources().Test(context.Background(), "r-1")

			apiErr, ok := AsAPIError(err)
			if !ok {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.IsNameCollision() != tt.wantCollision {
				t.Errorf("IsNameCollision() = %v, want %v", apiErr.IsNameCollision(), tt.wantCollision)
			}
			if apiErr.IsNotFound() != tt.wantNotFound {
				t.Errorf("IsNotFound() = %v, want %v", apiErr.IsNotFound(), tt.wantNotFound)
			}
			if apiErr.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestRateLimit_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, RateLimit: 0.001, RateBurst: 1})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("first Ping() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Ping(ctx); err == nil {
		t.Error("expected the limiter to reject a request it cannot admit before the deadline")
	}
}
