package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/api/dto"
	"github.com/spec-kit/token-gate/internal/service"
)

// UsersHandler exposes identity lookups.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /v1/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.GetMe(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Get handles GET /v1/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	param := dto.UserIDParam{ID: c.Params("id")}
	if err := validate(param); err != nil {
		return err
	}

	user, err := h.users.GetUser(c.UserContext(), param.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
