package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/service"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// OperatorsHandler manages operator authentication.
type OperatorsHandler struct {
	authService *service.AuthService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(authService *service.AuthService) *OperatorsHandler {
	return &OperatorsHandler{authService: authService}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login POST /auth/operators/login.
func (h *OperatorsHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	operator, token, expiresAt, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
		"operator": fiber.Map{
			"id":    operator.ID,
			"name":  operator.Name,
			"email": operator.Email,
			"role":  operator.Role,
		},
	}})
}
