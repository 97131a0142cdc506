package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/form-engine/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", 60)
	role := domain.OperatorRoleAdmin

	token, expiresAt, err := manager.GenerateToken("op-1", domain.SubjectTypeOperator, &role)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeOperator, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.OperatorRoleAdmin, *claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("citizen-1", domain.SubjectTypeCitizen, nil)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", 60).ParseToken("not.a.token")
	assert.Error(t, err)
}
