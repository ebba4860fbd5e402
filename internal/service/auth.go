package service

import (
	"context"
	"errors"
	"fmt"

	"shoreline/internal/auth"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/models"
	"shoreline/internal/repository"
)

type AuthService struct {
	accounts auth.Provider
	tokens   *auth.Tokens
	userRepo *repository.UserRepository
}

func NewAuthService(accounts auth.Provider, tokens *auth.Tokens, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		userRepo: userRepo,
	}
}

// SignIn checks credentials, records the login and issues an access token.
func (s *AuthService) SignIn(ctx context.Context, req *models.SignInRequest) (*models.SignInResponse, error) {
	acc, err := s.accounts.SignIn(ctx, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrAccountDisabled) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	token, err := s.tokens.Issue(acc)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, acc.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if user == nil {
		user = &models.User{UID: acc.UID, Email: acc.Email, Role: string(acc.Role)}
	}

	return &models.SignInResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      user,
	}, nil
}

// Authenticate turns a bearer token into the calling actor.
func (s *AuthService) Authenticate(raw string) (*Actor, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	return &Actor{UID: claims.Subject, Role: claims.Role}, nil
}
