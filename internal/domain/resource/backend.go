package resource

import "context"

// Backend is the server API consumed by the lifecycle manager.
type Backend interface {
	// ListResources returns every registered resource, uninterpreted.
	ListResources(ctx context.Context) ([]Record, error)

	// Connect registers a new resource.
	Connect(ctx context.Context, kind ServiceKind, name string, config Fields) error

	// Edit updates a resource in place. Omitted sensitive fields are kept.
	Edit(ctx context.Context, id, name string, config Fields) error

	// Test checks that the server can reach the resource.
	Test(ctx context.Context, id string) error

	// Delete removes a resource.
	Delete(ctx context.Context, id string) error

	// Discover lists the object names (tables, keys) a resource exposes.
	Discover(ctx context.Context, id string) ([]string, error)

	// Preview fetches the content of one object.
	Preview(ctx context.Context, id, object string) (*TabularData, error)

	// ServerConfig returns the server's active settings.
	ServerConfig(ctx context.Context) (*ServerConfig, error)

	// Operators lists the workflow operators that use a resource.
	Operators(ctx context.Context, id string) ([]OperatorUsage, error)
}
