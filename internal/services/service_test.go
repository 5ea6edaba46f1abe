package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/contacthub/auth-service/internal/cache"
	"github.com/contacthub/auth-service/internal/config"
	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/models"
	"github.com/contacthub/auth-service/internal/password"
	"github.com/contacthub/auth-service/internal/repository"
	"github.com/contacthub/auth-service/internal/token"
)

// fakeUserRepo is an in-memory stand-in for the GORM repository. It keeps
// the soft-delete semantics: deactivated rows stay invisible to lookups
// and writes but keep their email reserved.
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	createErr error
	findErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Email == email && !u.DeletedAt.Valid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	return f.mutate(id, func(u *models.User) { u.Verified = true })
}

func (f *fakeUserRepo) UpdateSecret(_ context.Context, id uuid.UUID, digest string) error {
	return f.mutate(id, func(u *models.User) { u.Password = digest })
}

func (f *fakeUserRepo) UpdateAvatar(_ context.Context, id uuid.UUID, url string) error {
	return f.mutate(id, func(u *models.User) { u.AvatarURL = url })
}

func (f *fakeUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	return f.mutate(id, func(u *models.User) {
		u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	})
}

func (f *fakeUserRepo) mutate(id uuid.UUID, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt.Valid {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

type sentMail struct {
	email string
	token string
}

// fakeMailer records what would have been delivered.
type fakeMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
	sendErr       error
}

func (f *fakeMailer) SendVerification(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.verifications = append(f.verifications, sentMail{email: email, token: token})
	return nil
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resets = append(f.resets, sentMail{email: email, token: token})
	return nil
}

func (f *fakeMailer) lastVerification(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verifications) == 0 {
		t.Fatal("no verification email was sent")
	}
	return f.verifications[len(f.verifications)-1]
}

func (f *fakeMailer) lastReset(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resets) == 0 {
		t.Fatal("no password reset email was sent")
	}
	return f.resets[len(f.resets)-1]
}

func (f *fakeMailer) verificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifications)
}

func (f *fakeMailer) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

// fakeAvatarStore records uploads and serves them from a fake CDN host.
type fakeAvatarStore struct {
	mu           sync.Mutex
	keys         []string
	contentTypes []string
	putErr       error
}

func (f *fakeAvatarStore) Put(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	f.contentTypes = append(f.contentTypes, contentType)
	return "https://cdn.test/" + key, nil
}

func (f *fakeAvatarStore) lastKey(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keys) == 0 {
		t.Fatal("no avatar was uploaded")
	}
	return f.keys[len(f.keys)-1]
}

type serviceFixture struct {
	auth     *AuthService
	user     *UserService
	users    *fakeUserRepo
	mailer   *fakeMailer
	avatars  *fakeAvatarStore
	sessions *cache.SessionStore
	codec    *token.Codec
	hasher   *password.Hasher
	mini     *miniredis.Miniredis
	cfg      *config.Config
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
		VerifyTokenTTL:   time.Hour,
		ResetTokenTTL:    time.Hour,
	}

	f := &serviceFixture{
		users:    newFakeUserRepo(),
		mailer:   &fakeMailer{},
		avatars:  &fakeAvatarStore{},
		sessions: cache.NewSessionStore(rdb),
		codec:    token.NewCodec(cfg.JWTSecret),
		hasher:   password.NewHasher(bcrypt.MinCost),
		mini:     mini,
		cfg:      cfg,
	}
	f.auth = NewAuthService(f.users, f.sessions, f.codec, f.hasher, f.mailer, cfg)
	f.user = NewUserService(f.users, f.sessions, f.hasher, f.avatars)
	return f
}

// registerVerified creates an account and walks it through email
// verification.
func (f *serviceFixture) registerVerified(t *testing.T, email, pw string) *models.User {
	t.Helper()
	ctx := context.Background()

	user, err := f.auth.Register(ctx, &dto.RegisterRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.auth.VerifyEmail(ctx, f.mailer.lastVerification(t).token); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return user
}

func (f *serviceFixture) login(t *testing.T, email, pw string) *dto.TokenPairResponse {
	t.Helper()

	pair, err := f.auth.Login(context.Background(), &dto.LoginRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return pair
}
