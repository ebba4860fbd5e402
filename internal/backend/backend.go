// Package backend connects the storage, auth, messaging, search and cache
// clients selected by the configuration and wires them into the services.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shoreline/internal/auth"
	"shoreline/internal/blobstore"
	"shoreline/internal/cache"
	"shoreline/internal/config"
	"shoreline/internal/database"
	"shoreline/internal/docstore"
	"shoreline/internal/messaging"
	"shoreline/internal/metrics"
	"shoreline/internal/repository"
	"shoreline/internal/search"
	"shoreline/internal/service"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Backend owns every external connection of a process.
type Backend struct {
	DB       *database.DB
	Docs     docstore.Store
	Blobs    blobstore.Store
	Accounts auth.Provider
	Tokens   *auth.Tokens
	NATS     *messaging.NATSClient
	Search   *search.ElasticsearchClient
	Valkey   *cache.ValkeyClient
	Metrics  *metrics.Metrics
	Repos    *repository.Repositories
	Services *service.Services
}

// Open connects the configured backends. Postgres is required in postgres
// mode; NATS, Elasticsearch and Valkey are optional and the process runs
// degraded when they are disabled or unreachable.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	tokens, err := auth.NewTokens(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	b := &Backend{Tokens: tokens, Metrics: metrics.New()}

	switch strings.ToLower(cfg.Storage) {
	case StoragePostgres:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		b.DB = db
		b.Docs = docstore.NewPostgresStore(db)
		b.Blobs = blobstore.NewPostgresStore(db, cfg.Blob)
		b.Accounts = auth.NewPostgresProvider(db, cfg.Auth)
	case StorageMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		b.Docs = docstore.NewMemoryStore()
		b.Blobs = blobstore.NewMemoryStore(cfg.Blob)
		b.Accounts = auth.NewMemoryProvider(cfg.Auth)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
	b.Repos = repository.NewRepositories(b.Docs)

	if cfg.NATS.Enabled {
		nc, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, domain events will not be published", "error", err)
		} else {
			b.NATS = nc
		}
	}

	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, search falls back to the document store", "error", err)
		} else {
			b.Search = es
		}
	}

	if cfg.Cache.Enabled {
		vc, err := cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			slog.Warn("Valkey unavailable, using in-process analytics cache", "error", err)
		} else {
			b.Valkey = vc
		}
	}

	b.Services = service.NewServices(b.deps())

	if cfg.BootstrapAdmin.Email != "" && cfg.BootstrapAdmin.Password != "" {
		if err := b.Services.Users.EnsureAdmin(ctx, cfg.BootstrapAdmin.Email, cfg.BootstrapAdmin.Password); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
		}
	}

	return b, nil
}

// deps assigns optional clients only when present, so the services see nil
// interfaces rather than typed nil pointers.
func (b *Backend) deps() service.Deps {
	d := service.Deps{
		Repos:    b.Repos,
		Accounts: b.Accounts,
		Tokens:   b.Tokens,
		Blobs:    b.Blobs,
		Metrics:  b.Metrics,
	}
	if b.NATS != nil {
		d.Publisher = b.NATS
	}
	if b.Search != nil {
		d.EventIndex = b.Search
		d.ReportIndex = b.Search
	}
	if b.Valkey != nil {
		d.Cache = b.Valkey
	} else {
		d.Cache = cache.NewMemoryCache()
	}
	return d
}

// Close releases every connection.
func (b *Backend) Close() error {
	if b.NATS != nil {
		if err := b.NATS.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if b.Valkey != nil {
		if err := b.Valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
