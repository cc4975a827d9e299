package domain

import "time"

// FamilyMember receives shared records through LINE once linked.
type FamilyMember struct {
	ID                string
	PatientID         string
	Name              string
	Relationship      string
	NotifyEnabled     bool
	LinkCode          *string
	LinkCodeExpiresAt *time.Time
	LineUserID        *string
	LinkedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Linked reports whether a LINE account is attached.
func (f FamilyMember) Linked() bool {
	return f.LineUserID != nil && *f.LineUserID != ""
}

// Invite is the public view of an open family invite.
type Invite struct {
	Code               string
	PatientDisplayName string
	MemberName         string
	ExpiresAt          time.Time
}

// MedicalShare grants a provider read access to a patient's vitals.
type MedicalShare struct {
	PatientID  string
	ProviderID string
	CreatedAt  time.Time
}
