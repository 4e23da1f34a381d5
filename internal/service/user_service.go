package service

import (
	"context"
	"errors"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

// UserService exposes identity lookups behind the authorization gate.
type UserService struct {
	users   repository.UserRepository
	me      auth.Operation[struct{}, *domain.User]
	getUser auth.Operation[string, *domain.User]
}

// NewUserService builds the service; every operation runs through authorizer.
func NewUserService(users repository.UserRepository, authorizer *auth.Authorizer) *UserService {
	s := &UserService{users: users}
	s.me = auth.Guard[struct{}, *domain.User](authorizer, s.currentUser)
	s.getUser = auth.Guard[string, *domain.User](authorizer, s.lookupUser)
	return s
}

// GetMe returns the authenticated caller.
func (s *UserService) GetMe(ctx context.Context) (*domain.User, error) {
	return s.me(ctx, struct{}{})
}

// GetUser returns the user with id. Callers may read themselves; reading
// anyone else requires ADMIN.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, id)
}

func (s *UserService) currentUser(ctx context.Context, _ struct{}) (*domain.User, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, auth.ErrAuthenticationRequired
	}
	return caller, nil
}

func (s *UserService) lookupUser(ctx context.Context, id string) (*domain.User, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, auth.ErrAuthenticationRequired
	}
	if caller.ID != id && !caller.HasRole(domain.RoleAdmin) {
		return nil, auth.ErrForbidden
	}
	if caller.ID == id {
		return caller, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}
