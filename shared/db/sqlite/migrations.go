package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all database migrations
// Each migration should be idempotent and safe to run multiple times
var migrations = []migration{
	{
		version: 1,
		name:    "create_products_table",
		up: `
			CREATE TABLE IF NOT EXISTS products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				manufacturer TEXT NOT NULL DEFAULT '',
				color TEXT NOT NULL DEFAULT '',
				price TEXT NOT NULL,
				quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_products_name
			ON products(name COLLATE NOCASE);
		`,
	},
	{
		version: 2,
		name:    "create_product_images_table",
		up: `
			CREATE TABLE IF NOT EXISTS product_images (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
				file_name TEXT NOT NULL UNIQUE,
				display_order INTEGER,
				created_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_product_images_product_id
			ON product_images(product_id);
		`,
	},
}

// runMigrations executes all pending migrations
func runMigrations(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.version,
			m.name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
