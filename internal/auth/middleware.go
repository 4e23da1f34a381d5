package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/domain"
)

const callerKey = "auth_caller"

// Middleware adapts the Authorizer to fiber handler chains.
type Middleware struct {
	authorizer *Authorizer
}

// NewMiddleware constructs middleware.
func NewMiddleware(authorizer *Authorizer) *Middleware {
	return &Middleware{authorizer: authorizer}
}

// Attach seeds the request context with the raw Authorization value and a
// fresh AuthorizationContext. It never rejects a request.
func (m *Middleware) Attach(c *fiber.Ctx) error {
	c.SetUserContext(NewRequestContext(c.UserContext(), c.Get(fiber.HeaderAuthorization)))
	return c.Next()
}

// Require enforces authentication and, when roles are given, membership in
// one of them. Stacked Require handlers reuse the caller resolved first.
func (m *Middleware) Require(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if _, ok := AuthorizationContextFrom(ctx); !ok {
			ctx = NewRequestContext(ctx, c.Get(fiber.HeaderAuthorization))
			c.SetUserContext(ctx)
		}

		user, err := m.authorizer.Authorize(ctx, roles...)
		if err != nil {
			return ToDomainError(err)
		}
		c.Locals(callerKey, user)
		return c.Next()
	}
}

// CallerFromFiber retrieves the authenticated user for the request.
func CallerFromFiber(c *fiber.Ctx) (*domain.User, bool) {
	if user, ok := c.Locals(callerKey).(*domain.User); ok && user != nil {
		return user, true
	}
	return CallerFromContext(c.UserContext())
}
