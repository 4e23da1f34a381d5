package auth

import (
	"context"
	"sync"

	"github.com/spec-kit/token-gate/internal/domain"
)

type credentialKey struct{}
type authorizationContextKey struct{}

// AuthorizationContext caches the caller resolved for one request. It is
// created once per request and shared by every gate invoked while serving it.
type AuthorizationContext struct {
	mu     sync.Mutex
	caller *domain.User
}

// NewAuthorizationContext returns an empty per-request context.
func NewAuthorizationContext() *AuthorizationContext {
	return &AuthorizationContext{}
}

// CallerUser returns the resolved caller, if any.
func (a *AuthorizationContext) CallerUser() (*domain.User, bool) {
	if a == nil {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caller, a.caller != nil
}

// resolve returns the cached caller for subject or loads it once. The lock is
// held across the lookup so concurrent gates in one request share one call.
func (a *AuthorizationContext) resolve(ctx context.Context, subject string, users UserDirectory) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.caller != nil && a.caller.ID == subject {
		return a.caller, nil
	}
	user, err := users.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	a.caller = user
	return user, nil
}

// WithCredential stores the raw credential presented with the request.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFromContext returns the raw credential, if one was presented.
func CredentialFromContext(ctx context.Context) (string, bool) {
	credential, ok := ctx.Value(credentialKey{}).(string)
	return credential, ok && credential != ""
}

// WithAuthorizationContext attaches authCtx to ctx.
func WithAuthorizationContext(ctx context.Context, authCtx *AuthorizationContext) context.Context {
	return context.WithValue(ctx, authorizationContextKey{}, authCtx)
}

// AuthorizationContextFrom returns the request's authorization context.
func AuthorizationContextFrom(ctx context.Context) (*AuthorizationContext, bool) {
	authCtx, ok := ctx.Value(authorizationContextKey{}).(*AuthorizationContext)
	return authCtx, ok && authCtx != nil
}

// EnsureAuthorizationContext returns ctx unchanged when it already carries an
// authorization context, otherwise a child context with a fresh one.
func EnsureAuthorizationContext(ctx context.Context) context.Context {
	if _, ok := AuthorizationContextFrom(ctx); ok {
		return ctx
	}
	return WithAuthorizationContext(ctx, NewAuthorizationContext())
}

// NewRequestContext prepares ctx for one request carrying credential.
func NewRequestContext(ctx context.Context, credential string) context.Context {
	return WithAuthorizationContext(WithCredential(ctx, credential), NewAuthorizationContext())
}

// CallerFromContext returns the authenticated caller of the current request.
func CallerFromContext(ctx context.Context) (*domain.User, bool) {
	authCtx, ok := AuthorizationContextFrom(ctx)
	if !ok {
		return nil, false
	}
	return authCtx.CallerUser()
}
