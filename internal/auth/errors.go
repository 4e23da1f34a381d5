package auth

import (
	"errors"

	"github.com/spec-kit/token-gate/internal/repository"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrMalformedToken         = errors.New("malformed token")
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenTypeMismatch      = errors.New("token type mismatch")
	ErrTokenNotFound          = errors.New("token not found")
	ErrForbidden              = errors.New("forbidden")
	ErrMissingSigningKey      = errors.New("signing key is required")
)

// IsVerificationError reports whether err came from token verification
// rather than from infrastructure.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenTypeMismatch) ||
		errors.Is(err, ErrTokenNotFound)
}

// ToDomainError maps authentication failures onto the API error vocabulary.
func ToDomainError(err error) *apperrors.DomainError {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var mapped error
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		mapped = apperrors.NewUnauthenticated("please authenticate")
	case errors.Is(err, ErrMalformedToken):
		mapped = apperrors.NewUnauthenticated("invalid token")
	case errors.Is(err, ErrTokenExpired):
		mapped = apperrors.NewUnauthenticated("token expired")
	case errors.Is(err, ErrTokenTypeMismatch):
		mapped = apperrors.NewForbidden("token not valid for this operation")
	case errors.Is(err, ErrTokenNotFound):
		mapped = apperrors.NewNotFound("token", nil)
	case errors.Is(err, ErrForbidden):
		mapped = apperrors.NewForbidden("insufficient role")
	case errors.Is(err, repository.ErrDuplicate):
		mapped = apperrors.NewConflict("token already issued", nil)
	case repository.IsUnavailable(err):
		mapped = apperrors.NewUnavailable(err)
	default:
		return apperrors.ToDomainError(err)
	}
	return apperrors.ToDomainError(mapped).Wrap(err)
}
