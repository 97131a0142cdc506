package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/repository"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Citizen identity is issued
// by the surrounding portal; only operators are resolved against local
// storage.
type Principal struct {
	SubjectType domain.SubjectType
	CitizenID   *string
	Operator    *domain.Operator
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	operators repository.OperatorRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, operators repository.OperatorRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal == nil {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional resolves a principal when a token is present but lets anonymous
// requests through. Used on submission intake, where the form's own
// settings decide whether authentication is required.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) (*Principal, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeCitizen:
		citizenID := claims.SubjectID
		return &Principal{SubjectType: domain.SubjectTypeCitizen, CitizenID: &citizenID}, nil
	case domain.SubjectTypeOperator:
		operator, err := m.operators.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			return nil, apperrors.NewUnauthorized("unknown operator")
		}
		if !operator.Active {
			return nil, apperrors.NewForbidden("operator deactivated")
		}
		return &Principal{SubjectType: domain.SubjectTypeOperator, Operator: operator}, nil
	default:
		return nil, apperrors.NewUnauthorized("unknown subject type")
	}
}

// PrincipalFromContext fetches the resolved principal, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok && principal != nil
}
