package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

const testSecret = "test-signing-key"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
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

// spyStore counts calls made against the wrapped store.
type spyStore struct {
	repository.TokenStore
	saves    atomic.Int32
	finds    atomic.Int32
	consumes atomic.Int32
}

func (s *spyStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	s.saves.Add(1)
	return s.TokenStore.Save(ctx, record)
}

func (s *spyStore) FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	s.finds.Add(1)
	return s.TokenStore.FindOne(ctx, token, tokenType, subject)
}

func (s *spyStore) Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	s.consumes.Add(1)
	return s.TokenStore.Consume(ctx, token, tokenType, subject)
}

func (s *spyStore) calls() int32 {
	return s.saves.Load() + s.finds.Load() + s.consumes.Load()
}

// MockUserDirectory implements auth.UserDirectory.
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

var testTTLs = auth.TokenTTLs{
	Access:        15 * time.Minute,
	Refresh:       30 * 24 * time.Hour,
	ResetPassword: 10 * time.Minute,
	VerifyEmail:   10 * time.Minute,
}

type fixture struct {
	clock    *testClock
	store    *spyStore
	tokens   *auth.TokenManager
	issuer   *auth.TokenIssuer
	verifier *auth.TokenVerifier
}

func newFixture() *fixture {
	clock := newTestClock()
	tokens, err := auth.NewTokenManager(testSecret, auth.WithClock(clock.Now))
	if err != nil {
		panic(err)
	}
	store := &spyStore{TokenStore: repository.NewMemoryTokenStore(clock.Now)}
	return &fixture{
		clock:    clock,
		store:    store,
		tokens:   tokens,
		issuer:   auth.NewTokenIssuer(tokens, store, testTTLs),
		verifier: auth.NewTokenVerifier(tokens, store),
	}
}
