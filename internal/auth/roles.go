package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/domain"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// RequireOperator ensures an operator is authenticated.
func RequireOperator() fiber.Handler {
	return RequireOperatorRole()
}

// RequireOperatorRole ensures the operator principal has one of the allowed
// roles; with no arguments any operator passes.
func RequireOperatorRole(allowed ...domain.OperatorRole) fiber.Handler {
	allowedSet := make(map[domain.OperatorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeOperator || principal.Operator == nil {
			return apperrors.NewForbidden("operator required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Operator.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
