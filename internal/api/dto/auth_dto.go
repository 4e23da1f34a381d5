package dto

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/token-gate/internal/domain"
)

var (
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
)

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// passwordRules requires at least 8 characters with one letter and one number.
func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(8, 0),
		validation.By(maxBytes(maxPasswordBytes)),
		validation.Match(hasLetter).Error("must contain at least one letter"),
		validation.Match(hasDigit).Error("must contain at least one number"),
	}
}

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the registration payload.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, passwordRules()...),
	)
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshTokenRequest carries a refresh token for logout and rotation.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest completes a password reset. Token comes from the query string.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, passwordRules()...),
	)
}

// VerifyEmailRequest redeems a verify-email token from the query string.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// TokenResponse is one issued token.
type TokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// AuthTokensResponse is the access/refresh pair returned by sign-in flows.
type AuthTokensResponse struct {
	Access  TokenResponse `json:"access"`
	Refresh TokenResponse `json:"refresh"`
}

// AuthResponse pairs the user with freshly issued tokens.
type AuthResponse struct {
	User   UserResponse       `json:"user"`
	Tokens AuthTokensResponse `json:"tokens"`
}

// NewAuthTokensResponse converts issued tokens.
func NewAuthTokensResponse(tokens *domain.AuthTokens) AuthTokensResponse {
	return AuthTokensResponse{
		Access:  TokenResponse{Token: tokens.Access.Token, Expires: tokens.Access.ExpiresAt},
		Refresh: TokenResponse{Token: tokens.Refresh.Token, Expires: tokens.Refresh.ExpiresAt},
	}
}

// maxBytes limits the encoded length of a string; Length counts runes.
func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return fmt.Errorf("must be no more than %d bytes long", limit)
		}
		return nil
	}
}
