package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/api/dto"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

type validatable interface {
	Validate() error
}

// bindJSON parses the request body into req and validates it.
func bindJSON(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewBadInput("invalid payload", nil)
	}
	return validate(req)
}

func validate(req validatable) error {
	if err := req.Validate(); err != nil {
		return apperrors.NewBadInput("validation failed", dto.ValidationDetails(err))
	}
	return nil
}
