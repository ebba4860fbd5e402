package blobstore

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	cfg     Config
	objects map[string]Object
	urlBuilder
}

func NewMemoryStore(cfg Config) *MemoryStore {
	return &MemoryStore{
		cfg:        cfg,
		objects:    make(map[string]Object),
		urlBuilder: urlBuilder{base: cfg.PublicBaseURL},
	}
}

func (m *MemoryStore) Upload(_ context.Context, p, contentType string, data []byte) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	if err := checkSize(m.cfg, data); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[p] = Object{
		Path:        p,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        append([]byte(nil), data...),
		CreatedAt:   time.Now(),
	}
	return m.url(p), nil
}

func (m *MemoryStore) DownloadURL(_ context.Context, p string) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[p]; !ok {
		return "", ErrNotFound
	}
	return m.url(p), nil
}

func (m *MemoryStore) Open(_ context.Context, p string) (*Object, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[p]
	if !ok {
		return nil, ErrNotFound
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

func (m *MemoryStore) Delete(_ context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[p]; !ok {
		return ErrNotFound
	}
	delete(m.objects, p)
	return nil
}
