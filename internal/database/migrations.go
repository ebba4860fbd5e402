package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createDocumentsTable,
		createDocumentsFieldsIndex,
		createBlobsTable,
		createAccountsTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    collection VARCHAR(100) NOT NULL,
    id VARCHAR(128) NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (collection, id)
);`

const createDocumentsFieldsIndex = `
CREATE INDEX IF NOT EXISTS documents_data_gin_idx
ON documents USING GIN (data jsonb_path_ops);`

const createBlobsTable = `
CREATE TABLE IF NOT EXISTS blobs (
    path VARCHAR(512) PRIMARY KEY,
    content_type VARCHAR(255) NOT NULL,
    data BYTEA NOT NULL,
    size BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
    uid VARCHAR(128) PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'volunteer',
    disabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login_at TIMESTAMPTZ,

    CHECK (role IN ('admin', 'organizer', 'volunteer'))
);`
