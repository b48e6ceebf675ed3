package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetMetadata returns every metadata entry of a product as a multimap.
// Value order per key follows insertion order.
func (db *DB) GetMetadata(ctx context.Context, tenant string, id int64) (map[string][]string, error) {
	query := `
        SELECT meta_key, meta_value FROM product_meta
        WHERE tenant = ? AND product_id = ?
        ORDER BY id ASC
    `

	rows, err := db.db.QueryContext(ctx, query, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta[key] = append(meta[key], value)
	}
	return meta, rows.Err()
}

// GetMetaValue returns the first value stored under a key, "" when absent.
func (db *DB) GetMetaValue(ctx context.Context, tenant string, id int64, key string) (string, error) {
	query := `
        SELECT meta_value FROM product_meta
        WHERE tenant = ? AND product_id = ? AND meta_key = ?
        ORDER BY id ASC LIMIT 1
    `

	var value string
	err := db.db.QueryRowContext(ctx, query, tenant, id, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta value: %w", err)
	}
	return value, nil
}

// SetMetadata replaces every value stored under a key with a single value.
func (db *DB) SetMetadata(ctx context.Context, tenant string, id int64, key, value string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metadata update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM product_meta WHERE tenant = ? AND product_id = ? AND meta_key = ?`,
		tenant, id, key,
	); err != nil {
		return fmt.Errorf("failed to clear metadata key: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO product_meta (tenant, product_id, meta_key, meta_value) VALUES (?, ?, ?, ?)`,
		tenant, id, key, value,
	); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return tx.Commit()
}

// AddMetadata appends another value under a key, keeping existing ones.
func (db *DB) AddMetadata(ctx context.Context, tenant string, id int64, key, value string) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO product_meta (tenant, product_id, meta_key, meta_value) VALUES (?, ?, ?, ?)`,
		tenant, id, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to add metadata: %w", err)
	}
	return nil
}

// Taxonomies returns the distinct taxonomies a product has terms in.
func (db *DB) Taxonomies(ctx context.Context, tenant string, id int64) ([]string, error) {
	query := `
        SELECT DISTINCT taxonomy FROM product_terms
        WHERE tenant = ? AND product_id = ?
        ORDER BY taxonomy ASC
    `

	rows, err := db.db.QueryContext(ctx, query, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get taxonomies: %w", err)
	}
	defer rows.Close()

	var taxonomies []string
	for rows.Next() {
		var taxonomy string
		if err := rows.Scan(&taxonomy); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
		}
		taxonomies = append(taxonomies, taxonomy)
	}
	return taxonomies, rows.Err()
}

// GetTerms returns the term slugs of a product in one taxonomy.
func (db *DB) GetTerms(ctx context.Context, tenant string, id int64, taxonomy string) ([]string, error) {
	query := `
        SELECT slug FROM product_terms
        WHERE tenant = ? AND product_id = ? AND taxonomy = ?
        ORDER BY id ASC
    `

	rows, err := db.db.QueryContext(ctx, query, tenant, id, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("failed to get terms: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// SetTerms replaces the product's term assignments in one taxonomy.
func (db *DB) SetTerms(ctx context.Context, tenant string, id int64, taxonomy string, slugs []string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin term update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM product_terms WHERE tenant = ? AND product_id = ? AND taxonomy = ?`,
		tenant, id, taxonomy,
	); err != nil {
		return fmt.Errorf("failed to clear terms: %w", err)
	}

	for _, slug := range slugs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_terms (tenant, product_id, taxonomy, slug) VALUES (?, ?, ?, ?)`,
			tenant, id, taxonomy, slug,
		); err != nil {
			return fmt.Errorf("failed to set term %s: %w", slug, err)
		}
	}

	return tx.Commit()
}
