package repository

import (
	"context"
	"time"

	"shoreline/internal/docstore"
	"shoreline/internal/models"
)

type UserRepository struct {
	docs collection[models.User]
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{docs: collection[models.User]{
		store: store,
		name:  models.CollectionUsers,
		setID: func(u *models.User, id string) { u.UID = id },
	}}
}

func (r *UserRepository) GetByID(ctx context.Context, uid string) (*models.User, error) {
	return r.docs.get(ctx, uid)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.docs.set(ctx, user.UID, user)
}

// Update applies fn to the stored profile.
func (r *UserRepository) Update(ctx context.Context, uid string, fn func(*models.User) error) (*models.User, error) {
	return r.docs.mutate(ctx, uid, func(u *models.User) error {
		if err := fn(u); err != nil {
			return err
		}
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	return r.docs.delete(ctx, uid)
}

func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	if role == "" {
		return r.docs.list(ctx)
	}
	return r.docs.list(ctx, docstore.Eq("role", role))
}
