package domain

import "time"

// LinkTarget identifies what a consumed link code was bound to.
type LinkTarget string

const (
	LinkTargetFamily LinkTarget = "family"
	LinkTargetSelf   LinkTarget = "self"
)

// SelfLinkCode binds a user's own LINE account.
type SelfLinkCode struct {
	Code       string
	UserID     string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	LineUserID *string
	CreatedAt  time.Time
}

// LinkResult describes an applied link code.
type LinkResult struct {
	Target    LinkTarget
	UserID    string
	PatientID string
	MemberID  string
	Name      string
}

// PasswordResetToken is a one-time reset credential.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
