package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	for _, p := range []string{"", "/abs", "a/../b", "a//b", "./a", `a\b`} {
		_, err := CleanPath(p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
	got, err := CleanPath("reports/r1/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "reports/r1/photo.jpg", got)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Config{PublicBaseURL: "http://localhost:8080/"})

	url, err := s.Upload(ctx, "reports/r1/photo 1.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/reports/r1/photo%201.jpg", url)

	got, err := s.DownloadURL(ctx, "reports/r1/photo 1.jpg")
	require.NoError(t, err)
	assert.Equal(t, url, got)

	obj, err := s.Open(ctx, "reports/r1/photo 1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, []byte("jpeg"), obj.Data)

	require.NoError(t, s.Delete(ctx, "reports/r1/photo 1.jpg"))
	_, err = s.Open(ctx, "reports/r1/photo 1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "reports/r1/photo 1.jpg"), ErrNotFound)
	_, err = s.DownloadURL(ctx, "reports/r1/photo 1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SizeLimit(t *testing.T) {
	s := NewMemoryStore(Config{MaxUploadBytes: 3})
	_, err := s.Upload(context.Background(), "a.bin", "application/octet-stream", []byte("four"))
	assert.ErrorIs(t, err, ErrTooLarge)
}
