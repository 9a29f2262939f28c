package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schemas holds the idempotent DDL per driver.  MySQL needs LONGBLOB for
// image payloads (BLOB caps at 64 KiB) and DATETIME(6) for sub-second
// insertion order.
var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS images (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			original_name VARCHAR(255) NOT NULL,
			watermarked_name VARCHAR(512) NOT NULL,
			metadata TEXT NOT NULL,
			image_data LONGBLOB NOT NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_images_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			email_normalized VARCHAR(255) NOT NULL,
			type_u VARCHAR(64) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			create_by VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE KEY uq_users_email_normalized (email_normalized)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			watermarked_name TEXT NOT NULL,
			metadata TEXT NOT NULL,
			image_data BLOB NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_created_at ON images (created_at)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			email_normalized TEXT NOT NULL,
			type_u TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			create_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email_normalized ON users (email_normalized)`,
	},
}

// EnsureSchema creates the images and users tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schemas[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %s", driver)
	}
	slog.Debug("ensuring database schema", "driver", driver)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
