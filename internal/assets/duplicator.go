package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"prodsync/internal/domain"
	"prodsync/internal/metrics"
	"prodsync/internal/models"

	"github.com/rs/zerolog"
)

// Duplicator copies binary assets from the master tenant's upload area
// into a target tenant's, resolving filename collisions by probing.
type Duplicator struct {
	store        domain.AssetStore
	generator    domain.MetadataGenerator
	uploadsRoot  string
	sourceTenant string
	logger       *zerolog.Logger
}

func NewDuplicator(store domain.AssetStore, generator domain.MetadataGenerator, uploadsRoot, sourceTenant string, logger *zerolog.Logger) *Duplicator {
	return &Duplicator{
		store:        store,
		generator:    generator,
		uploadsRoot:  uploadsRoot,
		sourceTenant: sourceTenant,
		logger:       logger,
	}
}

// Duplicate copies one asset into the target tenant and returns the new
// asset id. A source asset whose record or file is gone yields (0, nil):
// a missing asset skips, it never aborts the owning record's sync.
func (d *Duplicator) Duplicate(ctx context.Context, targetTenant string, assetID, ownerID int64) (int64, error) {
	asset, err := d.store.GetAsset(ctx, d.sourceTenant, assetID)
	if err != nil {
		d.logger.Warn().Int64("asset_id", assetID).Err(err).Msg("source asset record missing, skipping")
		return 0, nil
	}

	srcPath := filepath.Join(d.uploadsRoot, d.sourceTenant, asset.Path)
	data, err := os.ReadFile(srcPath)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn().Int64("asset_id", assetID).Str("path", srcPath).Msg("source file missing, skipping")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read source asset %d: %w", assetID, err)
	}

	targetDir := filepath.Join(d.uploadsRoot, targetTenant)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, fmt.Errorf("create target upload dir: %w", err)
	}

	name := uniqueFilename(targetDir, filepath.Base(asset.Path))
	destPath := filepath.Join(targetDir, name)
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write asset copy: %w", err)
	}

	newAsset := models.Asset{
		Title:    asset.Title,
		MimeType: asset.MimeType,
		Path:     name,
		OwnerID:  ownerID,
		Status:   models.AssetInherit,
	}
	newID, err := d.store.InsertAsset(ctx, targetTenant, &newAsset)
	if err != nil {
		return 0, fmt.Errorf("insert asset record: %w", err)
	}

	// Derived metadata is best effort, a failure never fails the copy.
	if d.generator != nil {
		if err := d.generator.Generate(ctx, targetTenant, newAsset, destPath); err != nil {
			d.logger.Warn().Int64("asset_id", newID).Err(err).Msg("derived metadata generation failed")
		}
	}

	metrics.IncAssetCopied()
	return newID, nil
}

// DuplicateGallery copies every asset of a comma-joined ordered id list,
// filtering out failed copies. The result keeps the source order and may
// be shorter than the input.
func (d *Duplicator) DuplicateGallery(ctx context.Context, targetTenant, gallery string, ownerID int64) string {
	var newIDs []string
	for _, raw := range strings.Split(gallery, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			d.logger.Warn().Str("gallery_id", raw).Msg("invalid gallery asset id, skipping")
			continue
		}

		newID, err := d.Duplicate(ctx, targetTenant, id, ownerID)
		if err != nil {
			d.logger.Warn().Int64("asset_id", id).Err(err).Msg("gallery asset copy failed, skipping")
			continue
		}
		if newID == 0 {
			continue
		}
		newIDs = append(newIDs, strconv.FormatInt(newID, 10))
	}
	return strings.Join(newIDs, ",")
}

// uniqueFilename probes name, name-1, name-2, ... until a free slot.
func uniqueFilename(dir, name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
}
