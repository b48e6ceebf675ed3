package domain

import (
	"context"

	"prodsync/internal/models"
)

// RecordStore is the tenant-aware product catalog. Every call names the
// tenant explicitly; there is no ambient "current tenant".
type RecordStore interface {
	CountPublished(ctx context.Context, tenant string) (int, error)
	ListPublished(ctx context.Context, tenant string, offset, limit int) ([]models.Product, error)
	GetProduct(ctx context.Context, tenant string, id int64) (*models.Product, error)
	// UpsertProduct inserts when id is 0, otherwise updates in place.
	// Returns the id of the written record.
	UpsertProduct(ctx context.Context, tenant string, id int64, fields models.ProductFields) (int64, error)
	DeleteProduct(ctx context.Context, tenant string, id int64) error

	// FindReplicaByMasterID resolves the replica link, 0 when absent.
	FindReplicaByMasterID(ctx context.Context, tenant string, masterID int64) (int64, error)
	FindReplicasByMasterID(ctx context.Context, tenant string, masterID int64) ([]int64, error)

	GetMetadata(ctx context.Context, tenant string, id int64) (map[string][]string, error)
	GetMetaValue(ctx context.Context, tenant string, id int64, key string) (string, error)
	SetMetadata(ctx context.Context, tenant string, id int64, key, value string) error
	AddMetadata(ctx context.Context, tenant string, id int64, key, value string) error

	Taxonomies(ctx context.Context, tenant string, id int64) ([]string, error)
	GetTerms(ctx context.Context, tenant string, id int64, taxonomy string) ([]string, error)
	SetTerms(ctx context.Context, tenant string, id int64, taxonomy string, slugs []string) error
}

// AssetStore holds asset records; the bytes live under the uploads root.
type AssetStore interface {
	GetAsset(ctx context.Context, tenant string, id int64) (*models.Asset, error)
	InsertAsset(ctx context.Context, tenant string, asset *models.Asset) (int64, error)
}

// ProgressStore persists the single process-wide SyncJob.
type ProgressStore interface {
	Read(ctx context.Context) (models.SyncJob, error)
	// Merge applies non-nil fields of the update onto the persisted job and
	// returns the new full state. Last write wins; callers serialize.
	Merge(ctx context.Context, update models.JobUpdate) (models.SyncJob, error)
}

// Replicator copies one master product into one target tenant.
type Replicator interface {
	Replicate(ctx context.Context, product models.Product, targetTenant string) (int64, error)
	DeleteReplicas(ctx context.Context, masterID int64, targetTenant string) (int, error)
}

// AssetDuplicator copies one binary asset into a target tenant. A missing
// source file is not an error: the returned id is 0.
type AssetDuplicator interface {
	Duplicate(ctx context.Context, targetTenant string, assetID, ownerID int64) (int64, error)
	// DuplicateGallery copies a comma-joined ordered id list, dropping
	// failed entries while preserving order.
	DuplicateGallery(ctx context.Context, targetTenant, gallery string, ownerID int64) string
}

// MetadataGenerator produces derived representations for a freshly copied
// asset (thumbnails, sidecar metadata).
type MetadataGenerator interface {
	Generate(ctx context.Context, tenant string, asset models.Asset, absPath string) error
}
