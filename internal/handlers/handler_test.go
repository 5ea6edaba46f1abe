package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/contacthub/auth-service/internal/cache"
	"github.com/contacthub/auth-service/internal/config"
	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/handlers"
	"github.com/contacthub/auth-service/internal/models"
	"github.com/contacthub/auth-service/internal/password"
	"github.com/contacthub/auth-service/internal/repository"
	"github.com/contacthub/auth-service/internal/routes"
	"github.com/contacthub/auth-service/internal/services"
	"github.com/contacthub/auth-service/internal/token"
)

// memUserRepo backs the endpoint tests with an in-memory account table
// that keeps the soft-delete semantics of the real repository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (m *memUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && !u.DeletedAt.Valid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	return m.mutate(id, func(u *models.User) { u.Verified = true })
}

func (m *memUserRepo) UpdateSecret(_ context.Context, id uuid.UUID, digest string) error {
	return m.mutate(id, func(u *models.User) { u.Password = digest })
}

func (m *memUserRepo) UpdateAvatar(_ context.Context, id uuid.UUID, url string) error {
	return m.mutate(id, func(u *models.User) { u.AvatarURL = url })
}

func (m *memUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	return m.mutate(id, func(u *models.User) {
		u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	})
}

func (m *memUserRepo) mutate(id uuid.UUID, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt.Valid {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

// captureMailer keeps the tokens that would have been emailed.
type captureMailer struct {
	mu           sync.Mutex
	verifyTokens []string
	resetTokens  []string
}

func (m *captureMailer) SendVerification(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens = append(m.verifyTokens, token)
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *captureMailer) lastVerifyToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verifyTokens) == 0 {
		t.Fatal("no verification email was sent")
	}
	return m.verifyTokens[len(m.verifyTokens)-1]
}

func (m *captureMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		t.Fatal("no reset email was sent")
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

type memAvatarStore struct{}

func (memAvatarStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	return "https://cdn.test/" + key, nil
}

type testEnv struct {
	app    *fiber.App
	users  *memUserRepo
	mailer *captureMailer
	codec  *token.Codec
	cfg    *config.Config
	mini   *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	return buildEnv(t, memAvatarStore{})
}

func newTestEnvWithoutAvatars(t *testing.T) *testEnv {
	return buildEnv(t, nil)
}

func buildEnv(t *testing.T, avatars services.AvatarStore) *testEnv {
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
		CORSOrigins:      "*",
	}

	users := newMemUserRepo()
	mailer := &captureMailer{}
	sessions := cache.NewSessionStore(rdb)
	codec := token.NewCodec(cfg.JWTSecret)
	hasher := password.NewHasher(bcrypt.MinCost)

	authService := services.NewAuthService(users, sessions, codec, hasher, mailer, cfg)
	userService := services.NewUserService(users, sessions, hasher, avatars)

	app := fiber.New()
	routes.Setup(app, cfg,
		handlers.NewAuthHandler(authService),
		handlers.NewUserHandler(userService),
		handlers.NewHealthHandler(rdb),
	)

	return &testEnv{
		app:    app,
		users:  users,
		mailer: mailer,
		codec:  codec,
		cfg:    cfg,
		mini:   mini,
		rdb:    rdb,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	return e.do(t, http.MethodPost, path, body, nil)
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

// registerVerified walks an account through registration and email
// verification over the HTTP surface.
func (e *testEnv) registerVerified(t *testing.T, email, pw string) {
	t.Helper()

	res := e.post(t, "/api/auth/register", dto.RegisterRequest{Email: email, Password: pw})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = e.do(t, http.MethodGet, "/api/auth/verify/"+e.mailer.lastVerifyToken(t), nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func (e *testEnv) login(t *testing.T, email, pw string) dto.TokenPairResponse {
	t.Helper()

	res := e.post(t, "/api/auth/login", dto.LoginRequest{Email: email, Password: pw})
	require.Equal(t, http.StatusOK, res.StatusCode)
	return decode[dto.TokenPairResponse](t, res)
}
