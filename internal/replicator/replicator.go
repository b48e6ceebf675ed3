package replicator

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"prodsync/internal/domain"
	"prodsync/internal/models"

	"github.com/rs/zerolog"
)

// Service replicates single master products into target tenants: replica
// lookup by master-id link, field upsert, metadata and taxonomy copy,
// image duplication. It knows nothing about batching or progress.
type Service struct {
	records domain.RecordStore
	images  domain.AssetDuplicator
	master  string
	logger  *zerolog.Logger
}

func New(records domain.RecordStore, images domain.AssetDuplicator, masterTenant string, logger *zerolog.Logger) *Service {
	return &Service{
		records: records,
		images:  images,
		master:  masterTenant,
		logger:  logger,
	}
}

// Replicate upserts one master product into the target tenant and returns
// the replica id. At most one replica exists per (product, tenant) pair,
// enforced by the master-id lookup before insert.
func (s *Service) Replicate(ctx context.Context, product models.Product, targetTenant string) (int64, error) {
	targetID, err := s.records.FindReplicaByMasterID(ctx, targetTenant, product.ID)
	if err != nil {
		return 0, s.fail(product.ID, targetTenant, err)
	}

	replicaID, err := s.records.UpsertProduct(ctx, targetTenant, targetID, product.Fields())
	if err != nil {
		return 0, s.fail(product.ID, targetTenant, err)
	}

	// Refresh the link before copying anything else so a later partial
	// failure still leaves the replica resolvable.
	if err := s.records.SetMetadata(ctx, targetTenant, replicaID, models.MetaMasterID, strconv.FormatInt(product.ID, 10)); err != nil {
		return 0, s.fail(product.ID, targetTenant, err)
	}

	if err := s.copyMetadata(ctx, product.ID, targetTenant, replicaID); err != nil {
		return 0, s.fail(product.ID, targetTenant, err)
	}
	if err := s.copyTerms(ctx, product.ID, targetTenant, replicaID); err != nil {
		return 0, s.fail(product.ID, targetTenant, err)
	}
	s.copyImages(ctx, product.ID, targetTenant, replicaID)

	s.logger.Info().
		Int64("product_id", product.ID).
		Str("tenant", targetTenant).
		Int64("replica_id", replicaID).
		Msg("product replicated")

	return replicaID, nil
}

// DeleteReplicas removes every replica linked to a master product in one
// target tenant, returning how many were deleted.
func (s *Service) DeleteReplicas(ctx context.Context, masterID int64, targetTenant string) (int, error) {
	ids, err := s.records.FindReplicasByMasterID(ctx, targetTenant, masterID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.records.DeleteProduct(ctx, targetTenant, id); err != nil {
			return deleted, err
		}
		deleted++
		s.logger.Info().
			Int64("master_id", masterID).
			Int64("replica_id", id).
			Str("tenant", targetTenant).
			Msg("replica deleted")
	}
	return deleted, nil
}

// copyMetadata copies every metadata key except the replica link and the
// image references, which the image copy rewrites with target-local ids.
func (s *Service) copyMetadata(ctx context.Context, sourceID int64, targetTenant string, replicaID int64) error {
	meta, err := s.records.GetMetadata(ctx, s.master, sourceID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(meta))
	for key := range meta {
		switch key {
		case models.MetaMasterID, models.MetaThumbnailID, models.MetaImageGallery:
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for i, value := range meta[key] {
			value = normalizeMetaValue(value)
			if i == 0 {
				err = s.records.SetMetadata(ctx, targetTenant, replicaID, key, value)
			} else {
				err = s.records.AddMetadata(ctx, targetTenant, replicaID, key, value)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// copyTerms replaces the replica's term assignments per taxonomy; target
// terms not present on the source are dropped, not merged.
func (s *Service) copyTerms(ctx context.Context, sourceID int64, targetTenant string, replicaID int64) error {
	taxonomies, err := s.records.Taxonomies(ctx, s.master, sourceID)
	if err != nil {
		return err
	}

	for _, taxonomy := range taxonomies {
		slugs, err := s.records.GetTerms(ctx, s.master, sourceID, taxonomy)
		if err != nil {
			return err
		}
		if err := s.records.SetTerms(ctx, targetTenant, replicaID, taxonomy, slugs); err != nil {
			return err
		}
	}
	return nil
}

// copyImages duplicates the featured image and the gallery. Image errors
// are soft: the replica just ends up without the affected asset.
func (s *Service) copyImages(ctx context.Context, sourceID int64, targetTenant string, replicaID int64) {
	thumb, err := s.records.GetMetaValue(ctx, s.master, sourceID, models.MetaThumbnailID)
	if err != nil {
		s.logger.Warn().Int64("product_id", sourceID).Err(err).Msg("read featured image reference failed")
	} else if thumb != "" {
		if thumbID, err := strconv.ParseInt(thumb, 10, 64); err == nil {
			newThumb, err := s.images.Duplicate(ctx, targetTenant, thumbID, replicaID)
			if err != nil {
				s.logger.Warn().Int64("asset_id", thumbID).Str("tenant", targetTenant).Err(err).Msg("featured image copy failed")
			} else if newThumb != 0 {
				if err := s.records.SetMetadata(ctx, targetTenant, replicaID, models.MetaThumbnailID, strconv.FormatInt(newThumb, 10)); err != nil {
					s.logger.Warn().Int64("replica_id", replicaID).Err(err).Msg("set featured image failed")
				}
			}
		}
	}

	gallery, err := s.records.GetMetaValue(ctx, s.master, sourceID, models.MetaImageGallery)
	if err != nil {
		s.logger.Warn().Int64("product_id", sourceID).Err(err).Msg("read gallery reference failed")
		return
	}
	if gallery == "" {
		return
	}

	newGallery := s.images.DuplicateGallery(ctx, targetTenant, gallery, replicaID)
	if err := s.records.SetMetadata(ctx, targetTenant, replicaID, models.MetaImageGallery, newGallery); err != nil {
		s.logger.Warn().Int64("replica_id", replicaID).Err(err).Msg("set gallery failed")
	}
}

func (s *Service) fail(productID int64, tenant string, err error) error {
	return &ReplicationError{ProductID: productID, Tenant: tenant, Err: err}
}

// normalizeMetaValue re-encodes JSON-structured values canonically so the
// replica side stores them in its native representation rather than as
// the source's raw serialized blob.
func normalizeMetaValue(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return raw
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return raw
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return raw
	}
	return string(out)
}
