package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const generationKey = "analytics:generation"

type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ValkeyClient caches computed analytics reports. Entries are keyed by a
// generation counter, so invalidation is a single INCR.
type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb, ttl: cfg.TTL}, nil
}

func reportKey(generation int64, name string) string {
	return fmt.Sprintf("analytics:%d:%s", generation, name)
}

// Generation returns the current cache generation. Read it before loading the
// records a report is built from and pass it to SetReport.
func (v *ValkeyClient) Generation(ctx context.Context) (int64, error) {
	s, err := v.client.Get(ctx, generationKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation lookup: %w", err)
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cache generation %q: %w", s, err)
	}
	return gen, nil
}

// GetReport returns the raw JSON of a cached report or ErrCacheMiss.
func (v *ValkeyClient) GetReport(ctx context.Context, name string) ([]byte, error) {
	gen, err := v.Generation(ctx)
	if err != nil {
		return nil, err
	}
	data, err := v.client.Get(ctx, reportKey(gen, name)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, nil
}

// SetReport stores a report under gen. A report built before an Invalidate
// lands under a superseded generation that GetReport never reads again, and
// expires with the TTL.
func (v *ValkeyClient) SetReport(ctx context.Context, gen int64, name string, data []byte) error {
	if err := v.client.Set(ctx, reportKey(gen, name), data, v.ttl).Err(); err != nil {
		return fmt.Errorf("cache store error: %w", err)
	}
	return nil
}

// Invalidate drops every cached report at once.
func (v *ValkeyClient) Invalidate(ctx context.Context) error {
	if err := v.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
