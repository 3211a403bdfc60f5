package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ResourceService handles resource-related API calls
type ResourceService struct {
	client *Client
}

// ConnectRequest represents a request to register a resource
type ConnectRequest struct {
	Service string
	Name    string
	Config  map[string]string
}

// EditRequest represents a request to update a resource. Omitted sensitive
// fields are left unchanged by the server.
type EditRequest struct {
	Name   string
	Config map[string]string
}

func resourcePath(id, action string) string {
	return fmt.Sprintf("/api/resource/%s/%s", url.PathEscape(id), action)
}

func configHeader(config map[string]string) (string, error) {
	if config == nil {
		config = map[string]string{}
	}
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// List retrieves every registered resource
func (s *ResourceService) List(ctx context.Context) ([]Resource, error) {
	var resources []Resource
	if err := s.client.doRequest(ctx, request{method: "GET", path: "/api/resources"}, &resources); err != nil {
		return nil, err
	}

	return resources, nil
}

// Connect registers a new resource
func (s *ResourceService) Connect(ctx context.Context, req ConnectRequest) error {
	cfg, err := configHeader(req.Config)
	if err != nil {
		return err
	}

	return s.client.doRequest(ctx, request{
		method: "POST",
		path:   "/api/resource/connect",
		headers: map[string]string{
			HeaderService: req.Service,
			HeaderName:    req.Name,
			HeaderConfig:  cfg,
		},
	}, nil)
}

// Edit updates an existing resource
func (s *ResourceService) Edit(ctx context.Context, id string, req EditRequest) error {
	cfg, err := configHeader(req.Config)
	if err != nil {
		return err
	}

	return s.client.doRequest(ctx, request{
		method: "POST",
		path:   resourcePath(id, "edit"),
		headers: map[string]string{
			HeaderName:   req.Name,
			HeaderConfig: cfg,
		},
	}, nil)
}

// Test asks the server to check connectivity to a resource
func (s *ResourceService) Test(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, request{method: "POST", path: resourcePath(id, "test")}, nil)
}

// Delete deletes a resource
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, request{method: "POST", path: resourcePath(id, "delete")}, nil)
}

// Discover lists the objects (tables, keys) a resource exposes
func (s *ResourceService) Discover(ctx context.Context, id string) ([]string, error) {
	var resp DiscoverResponse
	if err := s.client.doRequest(ctx, request{method: "GET", path: resourcePath(id, "discover")}, &resp); err != nil {
		return nil, err
	}

	return resp.ObjectNames, nil
}

// Preview retrieves the serialized content of one object
func (s *ResourceService) Preview(ctx context.Context, id, object string) ([]byte, error) {
	var resp PreviewResponse
	err := s.client.doRequest(ctx, request{
		method:  "GET",
		path:    resourcePath(id, "preview"),
		headers: map[string]string{HeaderObjectName: object},
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// Operators lists the workflow operators that use a resource
func (s *ResourceService) Operators(ctx context.Context, id string) ([]OperatorUsage, error) {
	var resp OperatorsResponse
	if err := s.client.doRequest(ctx, request{method: "GET", path: resourcePath(id, "operators")}, &resp); err != nil {
		return nil, err
	}

	return resp.Operators, nil
}
