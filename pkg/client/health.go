package client

import "context"

// Health checks the health of the API
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, request{method: "GET", path: "/healthz"}, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ping is a simple connectivity test
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// ServerConfig retrieves the server settings, including the active metadata
// storage configuration
func (c *Client) ServerConfig(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.doRequest(ctx, request{method: "GET", path: "/api/server-config"}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
