package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"smooshr/backend/internal/repository"
	"smooshr/backend/pkg/models"
)

// ErrKeyExpired is returned when an API key is past its expiration.
var ErrKeyExpired = errors.New("api key expired")

const apiKeyPrefix = "smsh_"

// APIKeyService issues and resolves per-user API keys.
type APIKeyService struct {
	repo   repository.Repository
	logger Logger
	now    func() time.Time
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(repo repository.Repository, logger Logger) *APIKeyService {
	return &APIKeyService{repo: repo, logger: logger, now: time.Now}
}

// List returns the keys of a user.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	return s.repo.ListAPIKeys(ctx, userID)
}

// Create issues a new random key that expires at req.Expiration.
func (s *APIKeyService) Create(ctx context.Context, userID string, req models.APIKeyCreate) (*models.APIKey, error) {
	if !req.Expiration.After(s.now()) {
		ve := &models.ValidationError{}
		ve.Add("expiration", "expiration must be in the future")
		return nil, ve
	}
	secret, err := generateKey()
	if err != nil {
		return nil, err
	}
	key := &models.APIKey{Key: secret, UserID: userID, Expiration: req.Expiration.UTC()}
	if err := s.repo.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	s.logger.Info("api key created", "user_id", userID, "expiration", key.Expiration)
	return key, nil
}

// Delete revokes a key owned by userID.
func (s *APIKeyService) Delete(ctx context.Context, userID, key string) error {
	return s.repo.DeleteAPIKey(ctx, userID, key)
}

// Resolve returns the owner of a valid key.
func (s *APIKeyService) Resolve(ctx context.Context, key string) (*models.User, error) {
	k, err := s.repo.GetAPIKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if k.Expired(s.now()) {
		return nil, ErrKeyExpired
	}
	return s.repo.GetUser(ctx, k.UserID)
}

func generateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
