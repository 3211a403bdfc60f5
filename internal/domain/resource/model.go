package resource

import "time"

// Fields is the flat key/value configuration persisted by the backend.
type Fields map[string]string

// Clone returns a shallow copy that is safe to mutate.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Resource represents a registered connection to an external service
type Resource struct {
	ID        string      `json:"id"`
	Kind      ServiceKind `json:"service"`
	Name      string      `json:"name"`
	Config    Fields      `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
	ExecState ExecState   `json:"exec_state"`

	// Conda is the environment registered on top of the default compute
	// resource. Only set for KindServer.
	Conda *Resource `json:"-"`
}

// Record is a resource as listed by the backend, before the service kind and
// config have been interpreted.
type Record struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	Name      string    `json:"name"`
	Config    Fields    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	ExecState ExecState `json:"exec_state"`

	// ConfigErr is set when the listed config could not be read as flat
	// string fields.
	ConfigErr error `json:"-"`
}

// ExecStatus is the server-observed status of a connection.
type ExecStatus string

const (
	ExecUnknown    ExecStatus = "unknown"
	ExecRegistered ExecStatus = "registered"
	ExecPending    ExecStatus = "pending"
	ExecRunning    ExecStatus = "running"
	ExecSucceeded  ExecStatus = "succeeded"
	ExecFailed     ExecStatus = "failed"
	ExecCanceled   ExecStatus = "canceled"
)

// Finished reports whether the status is terminal.
func (s ExecStatus) Finished() bool {
	return s == ExecSucceeded || s == ExecFailed || s == ExecCanceled
}

// ExecState is the asynchronous connection state reported by the backend.
type ExecState struct {
	Status ExecStatus `json:"status"`
	Error  *ExecError `json:"error,omitempty"`
}

// ExecError carries the backend's failure detail.
type ExecError struct {
	Tip     string `json:"tip"`
	Context string `json:"context"`
}

// OperatorUsage links a resource to a workflow operator that reads or writes it.
type OperatorUsage struct {
	ResourceID string `json:"resource_id"`
	WorkflowID string `json:"workflow_id"`
	DagID      string `json:"dag_id"`
	IsActive   bool   `json:"is_active"`
}

// Storage types
const (
	StorageS3   = "s3"
	StorageGCS  = "gcs"
	StorageFile = "file"
)

// StorageConfig describes where the server keeps workflow metadata.
type StorageConfig struct {
	Type string       `json:"type"`
	S3   *S3Storage   `json:"s3_config,omitempty"`
	GCS  *GCSStorage  `json:"gcs_config,omitempty"`
	File *FileStorage `json:"file_config,omitempty"`
}

type S3Storage struct {
	Bucket  string `json:"bucket"`
	Region  string `json:"region"`
	RootDir string `json:"root_dir,omitempty"`
}

type GCSStorage struct {
	Bucket string `json:"bucket"`
}

type FileStorage struct {
	Directory string `json:"directory"`
}

// ServerConfig is the subset of server settings the client relies on.
type ServerConfig struct {
	StorageConfig StorageConfig `json:"storage_config"`
	Version       string        `json:"version,omitempty"`
}
