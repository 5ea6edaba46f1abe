package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contacthub/auth-service/internal/cache"
	"github.com/contacthub/auth-service/internal/config"
	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/models"
	"github.com/contacthub/auth-service/internal/password"
	"github.com/contacthub/auth-service/internal/repository"
	"github.com/contacthub/auth-service/internal/token"
	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUserNotFound       = errors.New("user not found")
)

type AuthService struct {
	users    repository.UserRepository
	sessions *cache.SessionStore
	codec    *token.Codec
	hasher   *password.Hasher
	mailer   Mailer
	cfg      *config.Config
}

func NewAuthService(
	users repository.UserRepository,
	sessions *cache.SessionStore,
	codec *token.Codec,
	hasher *password.Hasher,
	mailer Mailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		mailer:   mailer,
		cfg:      cfg,
	}
}

// Register creates an unverified account and queues the verification
// email. A failed send is logged but does not undo the registration; the
// user can request another email.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.User, error) {
	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       uuid.New(),
		Email:    req.Email,
		Password: digest,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		slog.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// VerifyEmail marks the token's subject as verified. Verifying an already
// verified account succeeds again.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	claims, err := s.codec.Verify(rawToken, token.KindVerify)
	if err != nil {
		return ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ResendVerification issues a fresh verification token. Unknown and
// already verified addresses report success without sending anything, so
// the endpoint cannot be used to probe for accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.Verified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// Login verifies the credentials and mints a token pair. Absent users and
// wrong passwords fail identically, and the absent-user path still pays
// for a hash comparison. The verified flag is only consulted after the
// password matched.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenPairResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.DummyCompare(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(req.Password, user.Password); err != nil {
		if errors.Is(err, password.ErrCorruptDigest) {
			slog.Error("stored password digest is corrupt", "user_id", user.ID)
		}
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, ErrAccountNotVerified
	}

	return s.issueSessionPair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed
// atomically and a new pair is issued. Losing the consume race means the
// token was already used or revoked; that is treated as a stolen-token
// incident and every session of the user is revoked.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*dto.TokenPairResponse, error) {
	claims, err := s.codec.Verify(rawToken, token.KindRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	won, err := s.sessions.Consume(ctx, claims.ID, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}
	if !won {
		slog.Warn("refresh token reuse detected, revoking all sessions",
			"user_id", claims.Subject, "action", "refresh")
		if err := s.sessions.RevokeAll(ctx, claims.Subject); err != nil {
			slog.Error("failed to revoke user sessions", "user_id", claims.Subject, "error", err)
		}
		return nil, ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return s.issueSessionPair(ctx, user)
}

// Logout revokes the presented refresh token. A malformed, expired, or
// already revoked token is already logged out, so those cases succeed.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.codec.Verify(rawToken, token.KindRefresh)
	if err != nil {
		return nil
	}
	return s.sessions.Revoke(ctx, claims.ID, claims.Subject)
}

// LogoutAll revokes every live session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAll(ctx, userID.String())
}

// ForgotPassword issues a single-use reset token. Unknown addresses report
// success without sending anything.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	resetToken, claims, err := s.codec.Issue(user.ID, user.Email, token.KindReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}
	if err := s.sessions.Register(ctx, claims.ID, user.ID.String(), s.cfg.ResetTokenTTL); err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, user.Email, resetToken)
}

// ResetPassword consumes the reset token, stores the new secret, and
// revokes every session of the user. A reset token works exactly once.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.codec.Verify(rawToken, token.KindReset)
	if err != nil {
		return ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return ErrInvalidToken
	}

	won, err := s.sessions.Consume(ctx, claims.ID, claims.Subject)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !won {
		return ErrTokenRevoked
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdateSecret(ctx, userID, digest); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.sessions.RevokeAll(ctx, claims.Subject); err != nil {
		return fmt.Errorf("failed to revoke sessions after password change: %w", err)
	}
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) error {
	verifyToken, _, err := s.codec.Issue(user.ID, user.Email, token.KindVerify, s.cfg.VerifyTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}
	return s.mailer.SendVerification(ctx, user.Email, verifyToken)
}

// issueSessionPair mints an access/refresh pair and registers the refresh
// session. Tokens are only returned once the session is recorded.
func (s *AuthService) issueSessionPair(ctx context.Context, user *models.User) (*dto.TokenPairResponse, error) {
	accessToken, _, err := s.codec.Issue(user.ID, user.Email, token.KindAccess, s.cfg.JWTAccessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, refreshClaims, err := s.codec.Issue(user.ID, user.Email, token.KindRefresh, s.cfg.JWTRefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.sessions.Register(ctx, refreshClaims.ID, user.ID.String(), s.cfg.JWTRefreshExpiry); err != nil {
		return nil, err
	}

	return &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}
