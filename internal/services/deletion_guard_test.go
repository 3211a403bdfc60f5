package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
)

func s3Resource(bucket string) *resource.Resource {
	return &resource.Resource{
		ID:   "s3-1",
		Kind: resource.KindS3,
		Name: "lake",
		Config: resource.Fields{
			"type":              "access_key",
			"bucket":            bucket,
			"region":            "us-east-1",
			"root_dir":          "aqueduct",
			"access_key_id":     "AKIA",
			"secret_access_key": "secret",
		},
	}
}

func s3Server(bucket string) *resource.ServerConfig {
	return &resource.ServerConfig{StorageConfig: resource.StorageConfig{
		Type: resource.StorageS3,
		S3:   &resource.S3Storage{Bucket: bucket, Region: "us-east-1", RootDir: "aqueduct/"},
	}}
}

func TestDeletionGuard_CanDelete(t *testing.T) {
	guard := NewDeletionGuard(logger.Nop())

	conda := func(status resource.ExecStatus) *resource.Resource {
		return &resource.Resource{ID: "conda-1", Kind: resource.KindConda, Name: "conda", ExecState: resource.ExecState{Status: status}}
	}
	postgres := &resource.Resource{ID: "pg-1", Kind: resource.KindPostgres, Name: "orders", Config: postgresFields()}

	tests := []struct {
		name     string
		resource *resource.Resource
		server   *resource.ServerConfig
		usage    []resource.OperatorUsage
		want     Decision
	}{
		{
			name:     "s3 bucket is the metadata store",
			resource: s3Resource("lake"),
			server:   s3Server("s3://lake"),
			want:     Deny(ReasonMetadataStorage),
		},
		{
			name:     "s3 bucket after storage moved elsewhere",
			resource: s3Resource("lake"),
			server:   s3Server("archive"),
			want:     Allow,
		},
		{
			name:     "storage check wins over active usage",
			resource: s3Resource("lake"),
			server:   s3Server("lake"),
			usage:    []resource.OperatorUsage{{ResourceID: "s3-1", IsActive: true}},
			want:     Deny(ReasonMetadataStorage),
		},
		{
			name:     "built-in filesystem backing the server",
			resource: &resource.Resource{ID: "fs", Kind: resource.KindFilesystem, Name: "Filesystem", Config: resource.Fields{"directory": "/var/lib/app/"}},
			server: &resource.ServerConfig{StorageConfig: resource.StorageConfig{
				Type: resource.StorageFile, File: &resource.FileStorage{Directory: "/var/lib/app"},
			}},
			want: Deny(ReasonMetadataStorage),
		},
		{
			name:     "built-in demo database",
			resource: &resource.Resource{ID: "demo", Kind: resource.KindDemo, Name: "Demo"},
			want:     Deny(ReasonBuiltIn),
		},
		{
			name:     "default compute",
			resource: &resource.Resource{ID: "srv", Kind: resource.KindServer, Name: "Server"},
			want:     Deny(ReasonBuiltIn),
		},
		{
			name:     "conda still registering",
			resource: conda(resource.ExecPending),
			want:     Deny(ReasonBuiltIn),
		},
		{
			name:     "conda registered",
			resource: conda(resource.ExecSucceeded),
			want:     Allow,
		},
		{
			name:     "conda registration failed",
			resource: conda(resource.ExecFailed),
			want:     Allow,
		},
		{
			name:     "active workflow",
			resource: postgres,
			usage: []resource.OperatorUsage{
				{ResourceID: "pg-1", WorkflowID: "wf-1", IsActive: false},
				{ResourceID: "pg-1", WorkflowID: "wf-2", IsActive: true},
			},
			want: Deny(ReasonActiveWorkflow),
		},
		{
			name:     "usage records without resource id count",
			resource: postgres,
			usage:    []resource.OperatorUsage{{WorkflowID: "wf-1", IsActive: true}},
			want:     Deny(ReasonActiveWorkflow),
		},
		{
			name:     "usage of another resource is ignored",
			resource: postgres,
			usage:    []resource.OperatorUsage{{ResourceID: "pg-2", IsActive: true}},
			want:     Allow,
		},
		{
			name:     "inactive usage only",
			resource: postgres,
			usage:    []resource.OperatorUsage{{ResourceID: "pg-1", IsActive: false}},
			want:     Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.CanDelete(tt.resource, tt.server, tt.usage))
		})
	}
}

func TestDeletionGuard_ResolveDeleteTarget(t *testing.T) {
	guard := NewDeletionGuard(logger.Nop())
	conda := &resource.Resource{ID: "conda-1", Kind: resource.KindConda, Name: "conda"}

	target, substituted := guard.ResolveDeleteTarget(&resource.Resource{ID: "srv", Kind: resource.KindServer, Conda: conda})
	assert.True(t, substituted)
	assert.Same(t, conda, target)

	plain := &resource.Resource{ID: "srv", Kind: resource.KindServer}
	target, substituted = guard.ResolveDeleteTarget(plain)
	assert.False(t, substituted)
	assert.Same(t, plain, target)
}

func TestNormalizeStorage(t *testing.T) {
	got := normalizeStorage(resource.StorageConfig{
		Type: resource.StorageGCS,
		GCS:  &resource.GCSStorage{Bucket: "gs://lake/"},
	})
	assert.Equal(t, "lake", got.GCS.Bucket)
	assert.Nil(t, got.S3)
}
