package database

import (
	"context"
	"fmt"

	"prodsync/internal/models"
)

// GetAsset returns one asset record by id within a tenant.
func (db *DB) GetAsset(ctx context.Context, tenant string, id int64) (*models.Asset, error) {
	query := `
        SELECT id, title, mime_type, path, owner_id, status
        FROM assets WHERE tenant = ? AND id = ?
    `

	var a models.Asset
	err := db.db.QueryRowContext(ctx, query, tenant, id).Scan(
		&a.ID, &a.Title, &a.MimeType, &a.Path, &a.OwnerID, &a.Status,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAsset stores a new asset record and fills in its id.
func (db *DB) InsertAsset(ctx context.Context, tenant string, asset *models.Asset) (int64, error) {
	query := `
        INSERT INTO assets (tenant, title, mime_type, path, owner_id, status)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	result, err := db.db.ExecContext(ctx, query,
		tenant, asset.Title, asset.MimeType, asset.Path, asset.OwnerID, asset.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	asset.ID = id
	return id, nil
}
