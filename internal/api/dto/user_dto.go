package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/token-gate/internal/domain"
)

// UserIDParam identifies a user in a path.
type UserIDParam struct {
	ID string
}

func (p UserIDParam) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, is.UUID),
	)
}

// UserResponse is the public view of a user. The password hash never leaves the service.
type UserResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewUserResponse converts a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            string(user.Role),
		IsEmailVerified: user.IsEmailVerified,
		CreatedAt:       user.CreatedAt,
	}
}

// ValidationDetails flattens ozzo field errors into an error details map.
func ValidationDetails(err error) map[string]any {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return map[string]any{"error": err.Error()}
	}
	details := make(map[string]any, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		details[field] = fieldErr.Error()
	}
	return details
}
