package blobstore

import (
	"context"
	"database/sql"
	"fmt"

	"shoreline/internal/database"
)

// PostgresStore keeps blobs in the bytea column of the blobs table.
type PostgresStore struct {
	db  *database.DB
	cfg Config
	urlBuilder
}

func NewPostgresStore(db *database.DB, cfg Config) *PostgresStore {
	return &PostgresStore{db: db, cfg: cfg, urlBuilder: urlBuilder{base: cfg.PublicBaseURL}}
}

func (s *PostgresStore) Upload(ctx context.Context, p, contentType string, data []byte) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	if err := checkSize(s.cfg, data); err != nil {
		return "", err
	}

	query := `
		INSERT INTO blobs (path, content_type, data, size)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, size = EXCLUDED.size, created_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, p, contentType, data, len(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", p, err)
	}
	return s.url(p), nil
}

func (s *PostgresStore) DownloadURL(ctx context.Context, p string) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blobs WHERE path = $1)`, p).Scan(&exists); err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if !exists {
		return "", ErrNotFound
	}
	return s.url(p), nil
}

func (s *PostgresStore) Open(ctx context.Context, p string) (*Object, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	obj := &Object{Path: p}
	query := `SELECT content_type, data, size, created_at FROM blobs WHERE path = $1`
	err = s.db.QueryRowContext(ctx, query, p).Scan(&obj.ContentType, &obj.Data, &obj.Size, &obj.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return obj, nil
}

func (s *PostgresStore) Delete(ctx context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE path = $1`, p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
