package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/api/dto"
	"github.com/civicstack/form-engine/internal/auth"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/service"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// SubmissionsHandler manages intake and operator lifecycle endpoints.
type SubmissionsHandler struct {
	submissions *service.SubmissionService
}

// NewSubmissionsHandler constructs handler.
func NewSubmissionsHandler(submissions *service.SubmissionService) *SubmissionsHandler {
	return &SubmissionsHandler{submissions: submissions}
}

// CreateSubmission POST /forms/:id/submissions. The body is the raw
// field-id to value payload; auth is optional here and enforced per the
// form's own settings.
func (h *SubmissionsHandler) CreateSubmission(c *fiber.Ctx) error {
	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var citizenID *string
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.CitizenID != nil {
		citizenID = principal.CitizenID
	}
	submission, err := h.submissions.CreateSubmission(c.UserContext(), citizenID, c.Params("id"), payload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSubmissionResponse(submission)})
}

// GetSubmission GET /submissions/:id.
func (h *SubmissionsHandler) GetSubmission(c *fiber.Ctx) error {
	submission, err := h.submissions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	response := dto.NewSubmissionResponse(submission)
	if state, ok := h.submissions.ClassifySLA(c.UserContext(), submission); ok {
		response.SLAState = string(state)
	}
	return c.JSON(fiber.Map{"data": response})
}

// ListSubmissions GET /submissions.
func (h *SubmissionsHandler) ListSubmissions(c *fiber.Ctx) error {
	filter := service.SubmissionListFilter{}
	if formID := c.Query("form_id"); formID != "" {
		filter.FormID = &formID
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, status := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.SubmissionStatus(strings.ToUpper(strings.TrimSpace(status))))
		}
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset", "0"))

	submissions, err := h.submissions.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	result := make([]dto.SubmissionResponse, 0, len(submissions))
	for i := range submissions {
		response := dto.NewSubmissionResponse(&submissions[i])
		if state, ok := h.submissions.ClassifySLA(c.UserContext(), &submissions[i]); ok {
			response.SLAState = string(state)
		}
		result = append(result, response)
	}
	return c.JSON(fiber.Map{"data": result})
}

// Transition POST /submissions/:id/transition.
func (h *SubmissionsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	submission, err := h.submissions.Transition(c.UserContext(), principal.Operator.ID, c.Params("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSubmissionResponse(submission)})
}

// Assign POST /submissions/:id/assign.
func (h *SubmissionsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	submission, err := h.submissions.Assign(c.UserContext(), principal.Operator.ID, c.Params("id"), req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSubmissionResponse(submission)})
}

// History GET /submissions/:id/history.
func (h *SubmissionsHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	entries, err := h.submissions.History(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponse(entries)})
}
