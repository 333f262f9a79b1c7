package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smooshr/backend/internal/metrics"
	"smooshr/backend/internal/repository"
	"smooshr/backend/pkg/models"
)

// UserService resolves authenticated identities to stored users.
type UserService struct {
	repo   repository.Repository
	logger Logger
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.Repository, logger Logger) *UserService {
	return &UserService{repo: repo, logger: logger, now: time.Now}
}

// Get returns a stored user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// Provision returns the stored user with claims.ID, creating it from claims
// on first sight.
func (s *UserService) Provision(ctx context.Context, claims models.User) (*models.User, error) {
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: identity has no subject", ErrInvalidInput)
	}
	u, err := s.repo.GetUser(ctx, claims.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	claims.CreatedDate = s.now().UTC()
	if err := s.repo.CreateUser(ctx, &claims); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.repo.GetUser(ctx, claims.ID)
		}
		return nil, fmt.Errorf("provision user: %w", err)
	}
	metrics.UsersProvisioned.Inc()
	s.logger.Info("user provisioned", "user_id", claims.ID, "identity_provider", claims.IdentityProvider)
	return &claims, nil
}
