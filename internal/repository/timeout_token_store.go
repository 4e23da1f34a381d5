package repository

import (
	"context"
	"time"

	"github.com/spec-kit/token-gate/internal/domain"
)

// timeoutTokenStore bounds every call to the wrapped store. A call that runs
// past the deadline fails with ErrStoreUnavailable through the driver's
// context error.
type timeoutTokenStore struct {
	next    TokenStore
	timeout time.Duration
}

// WithTimeout wraps store so each operation is limited to timeout. A
// non-positive timeout returns store unchanged.
func WithTimeout(store TokenStore, timeout time.Duration) TokenStore {
	if timeout <= 0 {
		return store
	}
	return &timeoutTokenStore{next: store, timeout: timeout}
}

func (s *timeoutTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Save(ctx, record)
}

func (s *timeoutTokenStore) FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.FindOne(ctx, token, tokenType, subject)
}

func (s *timeoutTokenStore) Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Consume(ctx, token, tokenType, subject)
}

func (s *timeoutTokenStore) DeleteOne(ctx context.Context, record *domain.TokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.DeleteOne(ctx, record)
}

func (s *timeoutTokenStore) DeleteMany(ctx context.Context, subject string, tokenType domain.TokenType) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.DeleteMany(ctx, subject, tokenType)
}

func (s *timeoutTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.PurgeExpired(ctx, before)
}
