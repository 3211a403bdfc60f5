package services

import (
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
)

// Deletion denial reasons
const (
	ReasonMetadataStorage = "in use as metadata storage"
	ReasonBuiltIn         = "built-in, not deletable"
	ReasonActiveWorkflow  = "in use by an active workflow"
)

// Decision is the outcome of a deletion check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the decision for a deletable resource.
var Allow = Decision{Allowed: true}

// Deny returns a denial carrying reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// DeletionGuard decides whether a resource may be deleted.
type DeletionGuard struct {
	logger *logger.Logger
}

// NewDeletionGuard creates a new deletion guard
func NewDeletionGuard(log *logger.Logger) *DeletionGuard {
	return &DeletionGuard{logger: log.WithComponent("deletion_guard")}
}

// CanDelete evaluates, in order: metadata storage use, built-in status, and
// active workflow usage. The first rule that matches denies.
//
// usage must be the records fetched for r itself. The operators endpoint may
// leave resource_id empty, so an unattributed record is taken to be r's.
func (g *DeletionGuard) CanDelete(r *resource.Resource, server *resource.ServerConfig, usage []resource.OperatorUsage) Decision {
	if server != nil && g.isMetadataStorage(r, server.StorageConfig) {
		return Deny(ReasonMetadataStorage)
	}

	if registry.Lookup(r.Kind).BuiltIn && !isSettledConda(r) {
		return Deny(ReasonBuiltIn)
	}

	for _, u := range usage {
		// Only a record attributed to another resource is skipped.
		if u.IsActive && (u.ResourceID == "" || u.ResourceID == r.ID) {
			return Deny(ReasonActiveWorkflow)
		}
	}

	return Allow
}

// ResolveDeleteTarget returns the resource a delete request for r actually
// removes. Deleting the default compute resource means deleting its Conda
// sub-resource when one is registered.
func (g *DeletionGuard) ResolveDeleteTarget(r *resource.Resource) (target *resource.Resource, substituted bool) {
	if r.Kind == resource.KindServer && r.Conda != nil {
		g.logger.WithFields(map[string]interface{}{
			"resource_id": r.ID,
			"conda_id":    r.Conda.ID,
		}).Debug("delete redirected to conda sub-resource")
		return r.Conda, true
	}
	return r, false
}

func isSettledConda(r *resource.Resource) bool {
	if r.Kind != resource.KindConda {
		return false
	}
	s := r.ExecState.Status
	return s == resource.ExecSucceeded || s == resource.ExecFailed
}

func (g *DeletionGuard) isMetadataStorage(r *resource.Resource, active resource.StorageConfig) bool {
	if !registry.Lookup(r.Kind).StorageCapable {
		return false
	}
	cfg, err := resource.DecodeConfig(r.Kind, r.Config)
	if err != nil {
		g.logger.WithError(err).Warnf("cannot translate %s to a storage config", r.ID)
		return false
	}
	translated, ok := resource.StorageFor(cfg)
	if !ok {
		return false
	}
	return cmp.Equal(normalizeStorage(translated), normalizeStorage(active), cmpopts.EquateEmpty())
}

// normalizeStorage strips scheme prefixes and trailing slashes so that
// "s3://lake/" and "lake" compare equal.
func normalizeStorage(sc resource.StorageConfig) resource.StorageConfig {
	out := resource.StorageConfig{Type: sc.Type}
	if sc.S3 != nil {
		out.S3 = &resource.S3Storage{
			Bucket:  trimPath(strings.TrimPrefix(sc.S3.Bucket, "s3://")),
			Region:  sc.S3.Region,
			RootDir: trimPath(sc.S3.RootDir),
		}
	}
	if sc.GCS != nil {
		out.GCS = &resource.GCSStorage{Bucket: trimPath(strings.TrimPrefix(sc.GCS.Bucket, "gs://"))}
	}
	if sc.File != nil {
		out.File = &resource.FileStorage{Directory: strings.TrimRight(sc.File.Directory, "/")}
	}
	return out
}

func trimPath(s string) string {
	return strings.Trim(s, "/")
}
