package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/repository"
	"github.com/spec-kit/token-gate/internal/service"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu       sync.Mutex
	messages []service.EmailMessage
	err      error
}

func (r *recordingSender) Send(_ context.Context, msg service.EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingSender) last(t *testing.T) service.EmailMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.messages, "no email sent")
	return r.messages[len(r.messages)-1]
}

var notificationCfg = config.NotificationConfig{
	EmailFrom:        "noreply@example.com",
	ResetPasswordURL: "https://app.example.com/reset-password",
	VerifyEmailURL:   "https://app.example.com/verify-email",
}

// flakyUsers fails the next Update with updateErr, then behaves normally.
type flakyUsers struct {
	*repository.MemoryUserRepository
	mu        sync.Mutex
	updateErr error
}

func (f *flakyUsers) failNextUpdate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

func (f *flakyUsers) Update(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	err := f.updateErr
	f.updateErr = nil
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryUserRepository.Update(ctx, user)
}

type harness struct {
	clock      *testClock
	store      *repository.MemoryTokenStore
	users      *flakyUsers
	issuer     *auth.TokenIssuer
	authorizer *auth.Authorizer
	sender     *recordingSender
	auth       *service.AuthService
	userSvc    *service.UserService
}

func newHarness(t *testing.T, collapse bool) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenManager("service-test-secret", auth.WithClock(clock.Now))
	require.NoError(t, err)

	store := repository.NewMemoryTokenStore(clock.Now)
	users := &flakyUsers{MemoryUserRepository: repository.NewMemoryUserRepository()}
	issuer := auth.NewTokenIssuer(tokens, store, auth.TokenTTLs{
		Access:        15 * time.Minute,
		Refresh:       30 * 24 * time.Hour,
		ResetPassword: 10 * time.Minute,
		VerifyEmail:   10 * time.Minute,
	})
	verifier := auth.NewTokenVerifier(tokens, store)
	authorizer := auth.NewAuthorizer(verifier, users, zap.NewNop())

	dispatcher := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	service.NewNotificationService(dispatcher, sender, zap.NewNop(), notificationCfg).RegisterHandlers()

	authSvc := service.NewAuthService(config.AuthConfig{
		BcryptCost:          4,
		CollapseTokenErrors: collapse,
	}, service.AuthDependencies{
		Users:      users,
		Tokens:     store,
		Issuer:     issuer,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Clock:      clock.Now,
	})

	return &harness{
		clock:      clock,
		store:      store,
		users:      users,
		issuer:     issuer,
		authorizer: authorizer,
		sender:     sender,
		auth:       authSvc,
		userSvc:    service.NewUserService(users, authorizer),
	}
}

func (h *harness) register(t *testing.T, name, email string) (*domain.User, *domain.AuthTokens) {
	t.Helper()
	user, tokens, err := h.auth.Register(context.Background(), name, email, "password1")
	require.NoError(t, err)
	return user, tokens
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	require.Equal(t, code, de.Code)
	return de
}
