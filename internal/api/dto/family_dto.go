package dto

import (
	"time"

	"github.com/heartlog/rehab-api/internal/domain"
)

// FamilyMemberRequest creates or updates a family member.
type FamilyMemberRequest struct {
	Name          string `json:"name"`
	Relationship  string `json:"relationship"`
	NotifyEnabled *bool  `json:"notify_enabled"`
}

// FamilyMemberResponse response. The link code is only present while the invite is open.
type FamilyMemberResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Relationship      string     `json:"relationship"`
	NotifyEnabled     bool       `json:"notify_enabled"`
	Linked            bool       `json:"linked"`
	LinkedAt          *time.Time `json:"linked_at,omitempty"`
	LinkCode          *string    `json:"link_code,omitempty"`
	LinkCodeExpiresAt *time.Time `json:"link_code_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NewFamilyMemberResponse maps a domain family member.
func NewFamilyMemberResponse(m *domain.FamilyMember) FamilyMemberResponse {
	resp := FamilyMemberResponse{
		ID:            m.ID,
		Name:          m.Name,
		Relationship:  m.Relationship,
		NotifyEnabled: m.NotifyEnabled,
		Linked:        m.Linked(),
		LinkedAt:      m.LinkedAt,
		CreatedAt:     m.CreatedAt,
	}
	if !resp.Linked {
		resp.LinkCode = m.LinkCode
		resp.LinkCodeExpiresAt = m.LinkCodeExpiresAt
	}
	return resp
}

// InviteResponse is the public view of an open invite.
type InviteResponse struct {
	Code        string    `json:"code"`
	PatientName string    `json:"patient_name"`
	MemberName  string    `json:"member_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LinkCodeResponse returns a newly issued self-link code.
type LinkCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
