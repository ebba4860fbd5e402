// Package blobstore keeps uploaded files (report photos, event images) and
// hands out public URLs for them.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidPath = errors.New("invalid blob path")
	ErrTooLarge    = errors.New("blob too large")
)

type Config struct {
	PublicBaseURL  string
	MaxUploadBytes int64
}

type Object struct {
	Path        string
	ContentType string
	Size        int64
	Data        []byte
	CreatedAt   time.Time
}

type Store interface {
	// Upload stores data under path, replacing any previous object, and
	// returns its public URL.
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	DownloadURL(ctx context.Context, path string) (string, error)
	Open(ctx context.Context, path string) (*Object, error)
	Delete(ctx context.Context, path string) error
}

// CleanPath validates a relative object path such as "reports/<id>/photo.jpg".
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return path.Clean(p), nil
}

type urlBuilder struct {
	base string
}

func (u urlBuilder) url(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(u.base, "/") + "/blobs/" + strings.Join(segs, "/")
}

func checkSize(cfg Config, data []byte) error {
	if cfg.MaxUploadBytes > 0 && int64(len(data)) > cfg.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), cfg.MaxUploadBytes)
	}
	return nil
}
