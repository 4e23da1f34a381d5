package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

// TokenTTLs holds the lifetime configured for each token type.
type TokenTTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	ResetPassword time.Duration
	VerifyEmail   time.Duration
}

// For returns the configured lifetime for tokenType.
func (t TokenTTLs) For(tokenType domain.TokenType) time.Duration {
	switch tokenType {
	case domain.TokenTypeAccess:
		return t.Access
	case domain.TokenTypeRefresh:
		return t.Refresh
	case domain.TokenTypeResetPassword:
		return t.ResetPassword
	case domain.TokenTypeVerifyEmail:
		return t.VerifyEmail
	}
	return 0
}

// TokenIssuer mints signed tokens and persists the stateful ones.
type TokenIssuer struct {
	tokens *TokenManager
	store  repository.TokenStore
	ttls   TokenTTLs
}

// NewTokenIssuer constructs an issuer.
func NewTokenIssuer(tokens *TokenManager, store repository.TokenStore, ttls TokenTTLs) *TokenIssuer {
	return &TokenIssuer{tokens: tokens, store: store, ttls: ttls}
}

// Mint signs a token of tokenType for subject. Non-access tokens are saved to
// the store with a single write; a failed write means no token is returned.
func (i *TokenIssuer) Mint(ctx context.Context, subject string, tokenType domain.TokenType, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("mint %s token: subject is required", tokenType)
	}
	if !tokenType.Valid() {
		return "", time.Time{}, fmt.Errorf("mint token: unknown type %q", tokenType)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("mint %s token: ttl must be positive", tokenType)
	}

	token, claims, err := i.tokens.Sign(subject, tokenType, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	record := claims.Record(token)

	if tokenType.Persisted() {
		if err := i.store.Save(ctx, record); err != nil {
			return "", time.Time{}, fmt.Errorf("persist %s token: %w", tokenType, err)
		}
	}
	return token, record.ExpiresAt, nil
}

// MintFor mints a token using the configured lifetime for tokenType.
func (i *TokenIssuer) MintFor(ctx context.Context, subject string, tokenType domain.TokenType) (string, time.Time, error) {
	return i.Mint(ctx, subject, tokenType, i.ttls.For(tokenType))
}

// MintAuthPair issues an access token and a persisted refresh token.
func (i *TokenIssuer) MintAuthPair(ctx context.Context, subject string) (*domain.AuthTokens, error) {
	access, accessExp, err := i.MintFor(ctx, subject, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.MintFor(ctx, subject, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &domain.AuthTokens{
		Access:  domain.IssuedToken{Token: access, ExpiresAt: accessExp},
		Refresh: domain.IssuedToken{Token: refresh, ExpiresAt: refreshExp},
	}, nil
}
