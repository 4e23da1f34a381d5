package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/token-gate/internal/domain"
)

// Claims describes the JWT payload shared by every token type.
type Claims struct {
	Type domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Option customizes a TokenManager.
type Option func(*TokenManager)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// TokenManager signs and parses HS256 tokens with a key fixed at startup.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager builds a new manager. An empty secret is a configuration error.
func NewTokenManager(secret string, opts ...Option) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	tm := &TokenManager{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	return tm, nil
}

// Now returns the manager's current time.
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}

// Sign builds and signs a token for subject. The returned expiry matches the
// second-precision exp claim.
func (tm *TokenManager) Sign(subject string, tokenType domain.TokenType, ttl time.Duration) (string, *Claims, error) {
	now := tm.now()
	claims := &Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, claims, nil
}

// Parse validates the signature and expiry and returns the claims.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || !claims.Type.Valid() || claims.IssuedAt == nil {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Record converts claims into the token record they describe.
func (c *Claims) Record(token string) *domain.TokenRecord {
	return &domain.TokenRecord{
		ID:        c.ID,
		Token:     token,
		Subject:   c.Subject,
		Type:      c.Type,
		IssuedAt:  c.IssuedAt.Time.UTC(),
		ExpiresAt: c.ExpiresAt.Time.UTC(),
	}
}
