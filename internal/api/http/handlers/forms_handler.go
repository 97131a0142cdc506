package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/api/dto"
	"github.com/civicstack/form-engine/internal/auth"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/service"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// FormsHandler manages admin form-authoring endpoints.
type FormsHandler struct {
	forms *service.FormService
}

// NewFormsHandler constructs handler.
func NewFormsHandler(forms *service.FormService) *FormsHandler {
	return &FormsHandler{forms: forms}
}

// CreateForm POST /forms.
func (h *FormsHandler) CreateForm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.SaveFormRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	form, err := h.forms.SaveForm(c.UserContext(), principal.Operator.ID, service.FormInput{
		Title:    req.Title,
		Fields:   req.Fields,
		Settings: req.Settings,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFormResponse(form)})
}

// UpdateForm PUT /forms/:id.
func (h *FormsHandler) UpdateForm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.SaveFormRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	form, err := h.forms.UpdateForm(c.UserContext(), principal.Operator.ID, c.Params("id"), service.FormInput{
		Title:    req.Title,
		Fields:   req.Fields,
		Settings: req.Settings,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFormResponse(form)})
}

// GetForm GET /forms/:id.
func (h *FormsHandler) GetForm(c *fiber.Ctx) error {
	form, err := h.forms.GetForm(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFormResponse(form)})
}

// ListForms GET /forms.
func (h *FormsHandler) ListForms(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	forms, err := h.forms.ListForms(c.UserContext(), activeOnly, limit, offset)
	if err != nil {
		return err
	}
	result := make([]dto.FormResponse, 0, len(forms))
	for i := range forms {
		result = append(result, dto.NewFormResponse(&forms[i]))
	}
	return c.JSON(fiber.Map{"data": result})
}

// DeactivateForm POST /forms/:id/deactivate.
func (h *FormsHandler) DeactivateForm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	if err := h.forms.DeactivateForm(c.UserContext(), principal.Operator.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpsertSLAConfig PUT /sla-configs/:category.
func (h *FormsHandler) UpsertSLAConfig(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.SLAConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg := domain.SLAConfig{
		Category:                c.Params("category"),
		SLADays:                 req.SLADays,
		EscalationThresholdDays: req.EscalationThresholdDays,
		UseBusinessDays:         req.UseBusinessDays,
		BufferDays:              req.BufferDays,
	}
	if err := h.forms.UpsertSLAConfig(c.UserContext(), principal.Operator.ID, cfg); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetSLAConfig GET /sla-configs/:category.
func (h *FormsHandler) GetSLAConfig(c *fiber.Ctx) error {
	cfg, err := h.forms.GetSLAConfig(c.UserContext(), c.Params("category"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cfg})
}
