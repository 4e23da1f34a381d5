package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

// TokenVerifier validates presented tokens against an expected purpose.
type TokenVerifier struct {
	tokens *TokenManager
	store  repository.TokenStore
}

// NewTokenVerifier constructs a verifier.
func NewTokenVerifier(tokens *TokenManager, store repository.TokenStore) *TokenVerifier {
	return &TokenVerifier{tokens: tokens, store: store}
}

// Verify checks signature, expiry and type. Access tokens are trusted from
// their claims alone; every other type must still have a stored record.
func (v *TokenVerifier) Verify(ctx context.Context, raw string, expected domain.TokenType) (*domain.TokenRecord, error) {
	claims, err := v.decode(raw, expected)
	if err != nil {
		return nil, err
	}
	if !expected.Persisted() {
		return claims.Record(raw), nil
	}

	record, err := v.store.FindOne(ctx, raw, expected, claims.Subject)
	if err != nil {
		return nil, lookupError(err)
	}
	if record.Type != claims.Type {
		return nil, ErrTokenTypeMismatch
	}
	return record, nil
}

// Consume verifies a stateful token and removes its record in the same store
// operation, so a token can be redeemed at most once.
func (v *TokenVerifier) Consume(ctx context.Context, raw string, expected domain.TokenType) (*domain.TokenRecord, error) {
	if !expected.Persisted() {
		return nil, fmt.Errorf("consume: %s tokens are not persisted", expected)
	}
	claims, err := v.decode(raw, expected)
	if err != nil {
		return nil, err
	}

	record, err := v.store.Consume(ctx, raw, expected, claims.Subject)
	if err != nil {
		return nil, lookupError(err)
	}
	return record, nil
}

func (v *TokenVerifier) decode(raw string, expected domain.TokenType) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformedToken
	}
	claims, err := v.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrTokenTypeMismatch, claims.Type, expected)
	}
	return claims, nil
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
