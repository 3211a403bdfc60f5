package client

import (
	"encoding/json"
	"time"
)

// Resource represents a registered resource as returned by the API. Config
// values are left undecoded since the server does not always send strings.
type Resource struct {
	ID        string                 `json:"id"`
	Service   string                 `json:"service"` // Postgres, S3, Kubernetes, ...
	Name      string                 `json:"name"`
	Config    map[string]interface{} `json:"config"`
	CreatedAt time.Time              `json:"created_at"`
	ExecState *ExecState             `json:"exec_state,omitempty"`
}

// ExecState is the server-side connection state of a resource
type ExecState struct {
	Status string     `json:"status"` // unknown, registered, pending, running, succeeded, failed, canceled
	Error  *ExecError `json:"error,omitempty"`
}

// ExecError carries the failure detail of a connection
type ExecError struct {
	Tip     string `json:"tip"`
	Context string `json:"context"`
}

// OperatorUsage links a resource to a workflow operator that depends on it
type OperatorUsage struct {
	ResourceID string `json:"resource_id"`
	WorkflowID string `json:"workflow_id"`
	DagID      string `json:"dag_id"`
	IsActive   bool   `json:"is_active"`
}

// OperatorsResponse is the response of the operators endpoint
type OperatorsResponse struct {
	Operators []OperatorUsage `json:"operator_by_workflow"`
}

// DiscoverResponse lists the objects exposed by a resource
type DiscoverResponse struct {
	ObjectNames []string `json:"object_names"`
}

// PreviewResponse carries a serialized table of previewed data
type PreviewResponse struct {
	Data json.RawMessage `json:"data"`
}

// StorageConfig is the server's metadata storage configuration
type StorageConfig struct {
	Type       string             `json:"type"` // s3, gcs, file
	S3Config   *S3StorageConfig   `json:"s3_config,omitempty"`
	GCSConfig  *GCSStorageConfig  `json:"gcs_config,omitempty"`
	FileConfig *FileStorageConfig `json:"file_config,omitempty"`
}

type S3StorageConfig struct {
	Bucket  string `json:"bucket"`
	Region  string `json:"region"`
	RootDir string `json:"root_dir,omitempty"`
}

type GCSStorageConfig struct {
	Bucket string `json:"bucket"`
}

type FileStorageConfig struct {
	Directory string `json:"directory"`
}

// ServerConfig represents the server settings exposed to clients
type ServerConfig struct {
	StorageConfig StorageConfig `json:"storage_config"`
	Version       string        `json:"version,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
