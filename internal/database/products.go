package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"prodsync/internal/models"
)

// CountPublished returns the number of published products in a tenant.
func (db *DB) CountPublished(ctx context.Context, tenant string) (int, error) {
	query := `SELECT COUNT(*) FROM products WHERE tenant = ? AND status = ?`

	var count int
	err := db.db.QueryRowContext(ctx, query, tenant, models.ProductPublished).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count published products: %w", err)
	}
	return count, nil
}

// ListPublished returns one page of published products ordered by id ASC.
// The ordering is the cursor's frame of reference and must stay stable.
func (db *DB) ListPublished(ctx context.Context, tenant string, offset, limit int) ([]models.Product, error) {
	query := `
        SELECT id, title, body, excerpt, status, menu_order, updated_at
        FROM products
        WHERE tenant = ? AND status = ?
        ORDER BY id ASC LIMIT ? OFFSET ?
    `

	rows, err := db.db.QueryContext(ctx, query, tenant, models.ProductPublished, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list published products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.Excerpt, &p.Status, &p.MenuOrder, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product by id within a tenant.
func (db *DB) GetProduct(ctx context.Context, tenant string, id int64) (*models.Product, error) {
	query := `
        SELECT id, title, body, excerpt, status, menu_order, updated_at
        FROM products WHERE tenant = ? AND id = ?
    `

	var p models.Product
	err := db.db.QueryRowContext(ctx, query, tenant, id).Scan(
		&p.ID, &p.Title, &p.Body, &p.Excerpt, &p.Status, &p.MenuOrder, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProduct inserts a new product when id is 0, otherwise updates the
// existing row. Returns the id of the written record.
func (db *DB) UpsertProduct(ctx context.Context, tenant string, id int64, fields models.ProductFields) (int64, error) {
	now := time.Now()

	if id == 0 {
		query := `
            INSERT INTO products (tenant, title, body, excerpt, status, menu_order, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
        `
		result, err := db.db.ExecContext(ctx, query,
			tenant, fields.Title, fields.Body, fields.Excerpt, fields.Status, fields.MenuOrder, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert product: %w", err)
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get last insert id: %w", err)
		}
		return newID, nil
	}

	query := `
        UPDATE products SET title = ?, body = ?, excerpt = ?, status = ?, menu_order = ?, updated_at = ?
        WHERE tenant = ? AND id = ?
    `
	result, err := db.db.ExecContext(ctx, query,
		fields.Title, fields.Body, fields.Excerpt, fields.Status, fields.MenuOrder, now, tenant, id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("product %d not found in tenant %s", id, tenant)
	}
	return id, nil
}

// DeleteProduct removes a product with its metadata and term assignments.
func (db *DB) DeleteProduct(ctx context.Context, tenant string, id int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM product_meta WHERE tenant = ? AND product_id = ?`,
		`DELETE FROM product_terms WHERE tenant = ? AND product_id = ?`,
		`DELETE FROM products WHERE tenant = ? AND id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, tenant, id); err != nil {
			return fmt.Errorf("failed to delete product %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// FindReplicaByMasterID returns the replica linked to a master product,
// any status, at most one. 0 means no replica exists yet.
func (db *DB) FindReplicaByMasterID(ctx context.Context, tenant string, masterID int64) (int64, error) {
	query := `
        SELECT p.id FROM products p
        JOIN product_meta m ON m.tenant = p.tenant AND m.product_id = p.id
        WHERE p.tenant = ? AND m.meta_key = ? AND m.meta_value = ?
        ORDER BY p.id ASC LIMIT 1
    `

	var id int64
	err := db.db.QueryRowContext(ctx, query, tenant, models.MetaMasterID, strconv.FormatInt(masterID, 10)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find replica: %w", err)
	}
	return id, nil
}

// FindReplicasByMasterID returns every replica linked to a master product.
func (db *DB) FindReplicasByMasterID(ctx context.Context, tenant string, masterID int64) ([]int64, error) {
	query := `
        SELECT p.id FROM products p
        JOIN product_meta m ON m.tenant = p.tenant AND m.product_id = p.id
        WHERE p.tenant = ? AND m.meta_key = ? AND m.meta_value = ?
        ORDER BY p.id ASC
    `

	rows, err := db.db.QueryContext(ctx, query, tenant, models.MetaMasterID, strconv.FormatInt(masterID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to find replicas: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan replica id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
