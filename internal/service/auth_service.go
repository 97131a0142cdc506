package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicstack/form-engine/internal/auth"
	"github.com/civicstack/form-engine/internal/config"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/repository"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// AuthService coordinates operator login. Citizen identity is managed by
// the surrounding portal; this core only consumes its tokens.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, operators repository.OperatorRepository) *AuthService {
	return &AuthService{
		operators:  operators,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates an operator and returns a role-bearing token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Operator, string, time.Time, error) {
	operator, err := s.operators.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !operator.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("operator deactivated")
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	role := operator.Role
	token, expiresAt, err := s.tokenMgr.GenerateToken(operator.ID, domain.SubjectTypeOperator, &role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return operator, token, expiresAt, nil
}

// CreateOperator provisions a back-office account.
func (s *AuthService) CreateOperator(ctx context.Context, name, email, password string, role domain.OperatorRole) (*domain.Operator, error) {
	if _, err := s.operators.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	operator := &domain.Operator{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}
