package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the sqlite-backed catalog shared by every tenant. Rows carry the
// tenant id; product and asset ids are unique across tenants.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            excerpt TEXT,
            status TEXT NOT NULL DEFAULT 'draft',
            menu_order INTEGER NOT NULL DEFAULT 0,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS product_meta (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant TEXT NOT NULL,
            product_id INTEGER NOT NULL,
            meta_key TEXT NOT NULL,
            meta_value TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS product_terms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant TEXT NOT NULL,
            product_id INTEGER NOT NULL,
            taxonomy TEXT NOT NULL,
            slug TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS assets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant TEXT NOT NULL,
            title TEXT,
            mime_type TEXT,
            path TEXT NOT NULL,
            owner_id INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'inherit'
        )`,

		`CREATE INDEX IF NOT EXISTS idx_products_tenant_status ON products(tenant, status)`,
		`CREATE INDEX IF NOT EXISTS idx_meta_tenant_product ON product_meta(tenant, product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_meta_tenant_key_value ON product_meta(tenant, meta_key, meta_value)`,
		`CREATE INDEX IF NOT EXISTS idx_terms_tenant_product ON product_terms(tenant, product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_tenant_owner ON assets(tenant, owner_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ExecContext is exposed for tests and maintenance scripts.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// QueryRowContext is exposed for tests and maintenance scripts.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

func (db *DB) Close() error {
	return db.db.Close()
}
