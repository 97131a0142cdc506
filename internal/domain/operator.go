package domain

import "time"

// OperatorRole enumerates portal back-office roles.
type OperatorRole string

const (
	OperatorRoleOperator OperatorRole = "OPERATOR"
	OperatorRoleAdmin    OperatorRole = "ADMIN"
)

// Operator models a back-office worker handling submissions.
type Operator struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
