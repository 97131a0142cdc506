package domain

import "time"

// SubjectType differentiates citizen vs operator tokens.
type SubjectType string

const (
	SubjectTypeCitizen  SubjectType = "CITIZEN"
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *OperatorRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
