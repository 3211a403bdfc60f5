package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Header names used by the resource endpoints
const (
	HeaderService    = "X-Resource-Service"
	HeaderName       = "X-Resource-Name"
	HeaderConfig     = "X-Resource-Config"
	HeaderObjectName = "X-Object-Name"
	HeaderAPIKey     = "X-API-Key"
	HeaderRequestID  = "X-Request-ID"
)

// Client is the resource server API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
}

// Config holds the client configuration
type Config struct {
	BaseURL    string        // API base URL (e.g., "http://localhost:8080")
	APIKey     string        // API key sent as X-API-Key
	Timeout    time.Duration // HTTP client timeout (default: 30s)
	HTTPClient *http.Client  // Optional custom HTTP client
	RateLimit  float64       // Requests per second; 0 disables limiting
	RateBurst  int           // Burst size (default: 1)
}

// NewClient creates a new API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		limiter:    limiter,
	}
}

// SetAPIKey replaces the API key used for subsequent requests
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call
type request struct {
	method  string
	path    string
	headers map[string]string
	body    interface{}
}

// doRequest performs an HTTP request with proper error handling and decodes
// a JSON response into result
func (c *Client) doRequest(ctx context.Context, r request, result interface{}) error {
	respBody, err := c.send(ctx, r)
	if err != nil {
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// send performs the request and returns the raw response body
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reqBody io.Reader
	if r.body != nil {
		jsonData, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	// Perform request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for errors
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return nil, apiErr
	}

	return respBody, nil
}

// Resources returns the resource management service
func (c *Client) Resources() *ResourceService {
	return &ResourceService{client: c}
}
