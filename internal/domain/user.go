package domain

import "time"

// Role is the account type carried in session tokens.
type Role string

const (
	RolePatient Role = "patient"
	RoleMedical Role = "medical"
)

// Valid reports whether r is one of the two supported roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleMedical
}

// User is an account that can sign in.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	DisplayName  string
	LineUserID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
