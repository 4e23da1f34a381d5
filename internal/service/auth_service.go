package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/repository"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

// AuthService coordinates registration, login and the token-backed account flows.
type AuthService struct {
	users               repository.UserRepository
	tokens              repository.TokenStore
	issuer              *auth.TokenIssuer
	verifier            *auth.TokenVerifier
	dispatcher          events.Dispatcher
	logger              *zap.Logger
	bcryptCost          int
	dummyHash           string
	collapseTokenErrors bool
	now                 func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Tokens     repository.TokenStore
	Issuer     *auth.TokenIssuer
	Verifier   *auth.TokenVerifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	// Login compares against this when the email is unknown so both paths pay for bcrypt.
	dummyHash, err := auth.HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		logger.Warn("unable to prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		users:               deps.Users,
		tokens:              deps.Tokens,
		issuer:              deps.Issuer,
		verifier:            deps.Verifier,
		dispatcher:          deps.Dispatcher,
		logger:              logger,
		bcryptCost:          cfg.BcryptCost,
		dummyHash:           dummyHash,
		collapseTokenErrors: cfg.CollapseTokenErrors,
		now:                 now,
	}
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, *domain.AuthTokens, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.NewConflict("email already taken", nil)
		}
		return nil, nil, err
	}

	tokens, err := s.issuer.MintAuthPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, tokens, nil
}

// Login checks credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.AuthTokens, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	if user == nil {
		auth.PasswordMatches(s.dummyHash, password)
	}
	if user == nil || !auth.PasswordMatches(user.PasswordHash, password) {
		s.logger.Info("login rejected")
		return nil, nil, apperrors.NewUnauthenticated("incorrect email or password")
	}

	tokens, err := s.issuer.MintAuthPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return user, tokens, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.verifier.Consume(ctx, refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return s.tokenError(err)
	}
	s.logger.Info("refresh token revoked", zap.String("user_id", record.Subject))
	return nil
}

// RefreshAuth rotates a refresh token. The old record is consumed before the
// new pair is minted, so a replayed token observes NotFound.
func (s *AuthService) RefreshAuth(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	record, err := s.verifier.Consume(ctx, refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, s.tokenError(err)
	}

	if _, err := s.users.GetByID(ctx, record.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthenticated("please authenticate")
		}
		return nil, err
	}

	tokens, err := s.issuer.MintAuthPair(ctx, record.Subject)
	if err != nil {
		return nil, err
	}
	s.logger.Info("refresh token rotated", zap.String("user_id", record.Subject))
	return tokens, nil
}

// ForgotPassword mints a reset-password token and hands it to delivery.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NewNotFound("user", nil)
		}
		return "", err
	}

	token, expiresAt, err := s.issuer.MintFor(ctx, user.ID, domain.TokenTypeResetPassword)
	if err != nil {
		return "", err
	}
	if err := s.publishDelivery(ctx, events.EventPasswordResetRequested, user, token, expiresAt); err != nil {
		s.discardUndelivered(ctx, user.ID, token, domain.TokenTypeResetPassword)
		return "", err
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	return token, nil
}

// ResetPassword redeems a reset-password token and replaces the password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	record, err := s.verifier.Consume(ctx, token, domain.TokenTypeResetPassword)
	if err != nil {
		return s.tokenError(err)
	}

	user, err := s.lookupSubject(ctx, record.Subject)
	if err != nil {
		return err
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		s.restoreConsumed(ctx, record)
		return err
	}

	if _, err := s.tokens.DeleteMany(ctx, user.ID, domain.TokenTypeResetPassword); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// SendVerificationEmail replaces any outstanding verify-email token for user
// with a fresh one and hands it to delivery.
func (s *AuthService) SendVerificationEmail(ctx context.Context, user *domain.User) (string, error) {
	if user == nil {
		return "", auth.ErrAuthenticationRequired
	}
	if _, err := s.tokens.DeleteMany(ctx, user.ID, domain.TokenTypeVerifyEmail); err != nil {
		return "", err
	}

	token, expiresAt, err := s.issuer.MintFor(ctx, user.ID, domain.TokenTypeVerifyEmail)
	if err != nil {
		return "", err
	}
	if err := s.publishDelivery(ctx, events.EventEmailVerificationRequested, user, token, expiresAt); err != nil {
		s.discardUndelivered(ctx, user.ID, token, domain.TokenTypeVerifyEmail)
		return "", err
	}
	return token, nil
}

// VerifyEmail redeems a verify-email token and marks the owner verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	record, err := s.verifier.Consume(ctx, token, domain.TokenTypeVerifyEmail)
	if err != nil {
		return s.tokenError(err)
	}

	user, err := s.lookupSubject(ctx, record.Subject)
	if err != nil {
		return err
	}
	if _, err := s.tokens.DeleteMany(ctx, user.ID, domain.TokenTypeVerifyEmail); err != nil {
		return err
	}
	user.IsEmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		s.restoreConsumed(ctx, record)
		return err
	}
	s.logger.Info("email verified", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) lookupSubject(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperrors.NewBadInput("password is too long", map[string]any{"password": "must be no more than 72 bytes long"})
		}
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

// restoreConsumed puts back a record consumed by a flow that failed before it
// took effect, so the caller can retry with the same token.
func (s *AuthService) restoreConsumed(ctx context.Context, record *domain.TokenRecord) {
	if err := s.tokens.Save(ctx, record); err != nil {
		s.logger.Warn("unable to restore consumed token",
			zap.String("user_id", record.Subject),
			zap.String("type", string(record.Type)),
			zap.Error(err))
	}
}

// discardUndelivered removes a freshly minted record whose delivery failed.
func (s *AuthService) discardUndelivered(ctx context.Context, subject, token string, tokenType domain.TokenType) {
	record := &domain.TokenRecord{Token: token, Subject: subject, Type: tokenType}
	if err := s.tokens.DeleteOne(ctx, record); err != nil {
		s.logger.Warn("unable to discard undelivered token",
			zap.String("user_id", subject),
			zap.String("type", string(tokenType)),
			zap.Error(err))
	}
}

func (s *AuthService) publishDelivery(ctx context.Context, eventType events.EventType, user *domain.User, token string, expiresAt time.Time) error {
	if s.dispatcher == nil {
		return nil
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: user.ID,
		Timestamp: s.now().UTC(),
		Payload: events.TokenDeliveryPayload{
			Email:     user.Email,
			Name:      user.Name,
			Token:     token,
			ExpiresAt: expiresAt,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		return fmt.Errorf("deliver %s: %w", eventType, err)
	}
	return nil
}

// tokenError hides which verification step failed when configured to.
func (s *AuthService) tokenError(err error) error {
	if s.collapseTokenErrors && auth.IsVerificationError(err) {
		return apperrors.ToDomainError(apperrors.NewUnauthenticated("invalid or expired token")).Wrap(err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
