package services

import (
	"context"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/pkg/client"
)

// APIBackend adapts the HTTP client to resource.Backend
type APIBackend struct {
	client *client.Client
}

// NewAPIBackend creates a backend that talks to the server through c
func NewAPIBackend(c *client.Client) *APIBackend {
	return &APIBackend{client: c}
}

var _ resource.Backend = (*APIBackend)(nil)

func (b *APIBackend) ListResources(ctx context.Context) ([]resource.Record, error) {
	list, err := b.client.Resources().List(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]resource.Record, 0, len(list))
	for _, r := range list {
		rec := resource.Record{
			ID:        r.ID,
			Service:   r.Service,
			Name:      r.Name,
			CreatedAt: r.CreatedAt,
		}
		rec.Config, rec.ConfigErr = resource.FieldsFrom(r.Config)
		if r.ExecState != nil {
			rec.ExecState.Status = resource.ExecStatus(r.ExecState.Status)
			if r.ExecState.Error != nil {
				rec.ExecState.Error = &resource.ExecError{
					Tip:     r.ExecState.Error.Tip,
					Context: r.ExecState.Error.Context,
				}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *APIBackend) Connect(ctx context.Context, kind resource.ServiceKind, name string, config resource.Fields) error {
	err := b.client.Resources().Connect(ctx, client.ConnectRequest{
		Service: string(kind),
		Name:    name,
		Config:  config,
	})
	return mapNameConflict(err, name)
}

func (b *APIBackend) Edit(ctx context.Context, id, name string, config resource.Fields) error {
	err := b.client.Resources().Edit(ctx, id, client.EditRequest{Name: name, Config: config})
	return mapNameConflict(err, name)
}

func (b *APIBackend) Test(ctx context.Context, id string) error {
	return b.client.Resources().Test(ctx, id)
}

func (b *APIBackend) Delete(ctx context.Context, id string) error {
	return b.client.Resources().Delete(ctx, id)
}

func (b *APIBackend) Discover(ctx context.Context, id string) ([]string, error) {
	return b.client.Resources().Discover(ctx, id)
}

func (b *APIBackend) Preview(ctx context.Context, id, object string) (*resource.TabularData, error) {
	data, err := b.client.Resources().Preview(ctx, id, object)
	if err != nil {
		return nil, err
	}
	return resource.ParseTabular(data)
}

func (b *APIBackend) ServerConfig(ctx context.Context) (*resource.ServerConfig, error) {
	sc, err := b.client.ServerConfig(ctx)
	if err != nil {
		return nil, err
	}

	out := &resource.ServerConfig{
		Version:       sc.Version,
		StorageConfig: resource.StorageConfig{Type: sc.StorageConfig.Type},
	}
	if s3 := sc.StorageConfig.S3Config; s3 != nil {
		out.StorageConfig.S3 = &resource.S3Storage{Bucket: s3.Bucket, Region: s3.Region, RootDir: s3.RootDir}
	}
	if gcs := sc.StorageConfig.GCSConfig; gcs != nil {
		out.StorageConfig.GCS = &resource.GCSStorage{Bucket: gcs.Bucket}
	}
	if f := sc.StorageConfig.FileConfig; f != nil {
		out.StorageConfig.File = &resource.FileStorage{Directory: f.Directory}
	}
	return out, nil
}

func (b *APIBackend) Operators(ctx context.Context, id string) ([]resource.OperatorUsage, error) {
	ops, err := b.client.Resources().Operators(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]resource.OperatorUsage, len(ops))
	for i, o := range ops {
		out[i] = resource.OperatorUsage{
			ResourceID: o.ResourceID,
			WorkflowID: o.WorkflowID,
			DagID:      o.DagID,
			IsActive:   o.IsActive,
		}
	}
	return out, nil
}

// mapNameConflict reports a server-side name collision as NAME_CONFLICT so
// it is not confused with other failures.
func mapNameConflict(err error, name string) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.IsNameCollision() {
		e := errors.NameConflict(name, true)
		e.Internal = apiErr
		return e
	}
	return err
}
