package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"prodsync/internal/models"
)

// SidecarGenerator persists derived asset metadata as a JSON sidecar file
// next to the copied bytes. Stands in for a full thumbnailing pipeline.
type SidecarGenerator struct{}

func NewSidecarGenerator() *SidecarGenerator {
	return &SidecarGenerator{}
}

type sidecarMetadata struct {
	AssetID     int64     `json:"asset_id"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (g *SidecarGenerator) Generate(ctx context.Context, tenant string, asset models.Asset, absPath string) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat asset file: %w", err)
	}

	meta := sidecarMetadata{
		AssetID:     asset.ID,
		MimeType:    asset.MimeType,
		SizeBytes:   info.Size(),
		GeneratedAt: time.Now(),
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode asset metadata: %w", err)
	}

	return os.WriteFile(absPath+".meta.json", data, 0o644)
}
