package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shoreline/internal/auth"
	"shoreline/internal/docstore"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/models"
	"shoreline/internal/repository"

	"github.com/google/uuid"
)

// UserService backs the admin user-management surface. Every user is an
// auth account plus a profile document with the same uid.
type UserService struct {
	accounts  auth.Provider
	userRepo  *repository.UserRepository
	publisher Publisher
}

func NewUserService(accounts auth.Provider, userRepo *repository.UserRepository, publisher Publisher) *UserService {
	return &UserService{
		accounts:  accounts,
		userRepo:  userRepo,
		publisher: publisher,
	}
}

// accountError maps provider errors onto API error classes.
func accountError(err error) error {
	switch {
	case errors.Is(err, auth.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	case errors.Is(err, auth.ErrEmailTaken):
		return fmt.Errorf("%w: %w", apperrors.ErrConflict, err)
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidRole):
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	return err
}

func (s *UserService) Create(ctx context.Context, req *models.CreateUserRequest) (*models.CreateUserResponse, error) {
	role := auth.RoleVolunteer
	if req.Role != "" {
		r, err := auth.ParseRole(req.Role)
		if err != nil {
			return nil, accountError(err)
		}
		role = r
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	uid := uuid.New().String()
	acc, err := s.accounts.CreateAccount(ctx, uid, req.Email, req.Password, role)
	if err != nil {
		return nil, accountError(err)
	}

	user := &models.User{
		UID:       uid,
		Name:      name,
		Email:     acc.Email,
		Role:      string(role),
		ContactNo: strings.TrimSpace(req.ContactNo),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if delErr := s.accounts.DeleteAccount(ctx, uid); delErr != nil {
			slog.Error("Failed to roll back account", "uid", uid, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	publish(s.publisher, models.SubjectUserCreated, models.UserEvent{
		UID:       uid,
		Role:      string(role),
		Timestamp: time.Now(),
	})

	return &models.CreateUserResponse{UID: uid}, nil
}

func (s *UserService) Update(ctx context.Context, uid string, req *models.UpdateUserRequest) error {
	upd := auth.AccountUpdate{Email: req.Email, Password: req.Password}
	if req.Role != nil {
		r, err := auth.ParseRole(*req.Role)
		if err != nil {
			return accountError(err)
		}
		upd.Role = &r
	}
	if req.Disabled != nil {
		d := req.Disabled.Bool()
		upd.Disabled = &d
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", apperrors.ErrValidation)
	}

	if err := s.accounts.UpdateAccount(ctx, uid, upd); err != nil {
		return accountError(err)
	}

	acc, err := s.accounts.GetAccount(ctx, uid)
	if err != nil {
		return accountError(err)
	}

	_, err = s.userRepo.Update(ctx, uid, func(u *models.User) error {
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.ContactNo != nil {
			u.ContactNo = strings.TrimSpace(*req.ContactNo)
		}
		u.Email = acc.Email
		u.Role = string(acc.Role)
		return nil
	})
	if errors.Is(err, docstore.ErrNotFound) {
		// account without a profile: recreate it
		return s.userRepo.Create(ctx, &models.User{
			UID:   uid,
			Name:  derefOr(req.Name, ""),
			Email: acc.Email,
			Role:  string(acc.Role),
		})
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (s *UserService) Delete(ctx context.Context, uid string) error {
	if err := s.accounts.DeleteAccount(ctx, uid); err != nil {
		return accountError(err)
	}
	if err := s.userRepo.Delete(ctx, uid); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	publish(s.publisher, models.SubjectUserDeleted, models.UserEvent{
		UID:       uid,
		Timestamp: time.Now(),
	})
	return nil
}

func (s *UserService) LastLoginTime(ctx context.Context, uid string) (*models.LastLoginResponse, error) {
	acc, err := s.accounts.GetAccount(ctx, uid)
	if err != nil {
		return nil, accountError(err)
	}
	return &models.LastLoginResponse{UID: uid, LastLoginTime: acc.LastLoginAt}, nil
}

func (s *UserService) Get(ctx context.Context, uid string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, uid)
	}
	return user, nil
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// EnsureAdmin creates an admin account unless the email is already taken.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.Create(ctx, &models.CreateUserRequest{
		Email:    email,
		Password: password,
		Name:     "Administrator",
		Role:     "admin",
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	return err
}
