package backend

import (
	"context"
	"testing"
	"time"

	"shoreline/internal/auth"
	"shoreline/internal/config"
	"shoreline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage: StorageMemory,
		Auth:    auth.Config{JWTSecret: "s", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		BootstrapAdmin: config.AdminConfig{
			Email:    "root@example.org",
			Password: "changeme",
		},
	}
}

func TestOpen_MemoryWithBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, memoryConfig())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.Nil(t, b.NATS)
	assert.Nil(t, b.Search)

	res, err := b.Services.Auth.SignIn(ctx, &models.SignInRequest{Email: "root@example.org", Password: "changeme"})
	require.NoError(t, err)
	assert.Equal(t, "admin", res.User.Role)

	require.NoError(t, b.Services.Users.EnsureAdmin(ctx, "root@example.org", "changeme"))
}

func TestOpen_Rejects(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage = "s3"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Auth.JWTSecret = ""
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}
