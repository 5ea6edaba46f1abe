package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/contacthub/auth-service/internal/cache"
	"github.com/contacthub/auth-service/internal/models"
	"github.com/contacthub/auth-service/internal/password"
	"github.com/contacthub/auth-service/internal/repository"
	"github.com/google/uuid"
)

// ErrAvatarStorageDisabled is returned when no object storage is
// configured for avatar uploads.
var ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")

// AvatarStore uploads avatar objects and returns their public URL.
type AvatarStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type UserService struct {
	users    repository.UserRepository
	sessions *cache.SessionStore
	hasher   *password.Hasher
	avatars  AvatarStore
}

func NewUserService(
	users repository.UserRepository,
	sessions *cache.SessionStore,
	hasher *password.Hasher,
	avatars AvatarStore,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		avatars:  avatars,
	}
}

// Me returns the caller's profile.
func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateAvatar uploads the image under a fresh key and stores its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (*models.User, error) {
	if s.avatars == nil {
		return nil, ErrAvatarStorageDisabled
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New(), path.Ext(filename))
	url, err := s.avatars.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Me(ctx, userID)
}

// Deactivate soft-deletes the account after confirming the password and
// revokes every live session. The email stays reserved.
func (s *UserService) Deactivate(ctx context.Context, userID uuid.UUID, confirmPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.hasher.Verify(confirmPassword, user.Password); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, userID.String())
}
