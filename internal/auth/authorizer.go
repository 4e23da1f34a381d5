package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

// UserDirectory resolves identities by id.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Authorizer authenticates the request credential and enforces roles.
type Authorizer struct {
	verifier *TokenVerifier
	users    UserDirectory
	logger   *zap.Logger
}

// NewAuthorizer constructs an authorizer.
func NewAuthorizer(verifier *TokenVerifier, users UserDirectory, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{verifier: verifier, users: users, logger: logger}
}

// Authorize verifies the access token carried by ctx, resolves the caller
// through the request's AuthorizationContext and checks requiredRoles.
// An empty role list admits any authenticated user.
func (a *Authorizer) Authorize(ctx context.Context, requiredRoles ...domain.Role) (*domain.User, error) {
	credential, ok := CredentialFromContext(ctx)
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	record, err := a.verifier.Verify(ctx, credential, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	authCtx, ok := AuthorizationContextFrom(ctx)
	if !ok {
		authCtx = NewAuthorizationContext()
	}
	user, err := authCtx.resolve(ctx, record.Subject, a.users)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			a.logger.Warn("access token subject no longer exists", zap.String("subject", record.Subject))
			return nil, fmt.Errorf("%w: unknown subject", ErrAuthenticationRequired)
		}
		return nil, err
	}

	if !user.HasRole(requiredRoles...) {
		a.logger.Info("role check failed",
			zap.String("user_id", user.ID),
			zap.String("role", string(user.Role)),
			zap.Any("required", requiredRoles))
		return nil, ErrForbidden
	}
	return user, nil
}

// Operation is any context-first unit of work a gate can protect.
type Operation[In, Out any] func(ctx context.Context, in In) (Out, error)

// Guard wraps op so it only runs after Authorize succeeds. The wrapped
// operation sees the caller through CallerFromContext.
func Guard[In, Out any](a *Authorizer, op Operation[In, Out], requiredRoles ...domain.Role) Operation[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		ctx = EnsureAuthorizationContext(ctx)
		if _, err := a.Authorize(ctx, requiredRoles...); err != nil {
			var zero Out
			return zero, err
		}
		return op(ctx, in)
	}
}
