package dto

import (
	"time"

	"github.com/heartlog/rehab-api/internal/domain"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ProfileRequest replaces the caller's profile.
type ProfileRequest struct {
	BirthDate       *string `json:"birth_date"`
	Sex             string  `json:"sex"`
	Diagnosis       string  `json:"diagnosis"`
	TargetHeartRate *int    `json:"target_heart_rate"`
	Phone           string  `json:"phone"`
}

// ProfileResponse response.
type ProfileResponse struct {
	UserID          string     `json:"user_id"`
	BirthDate       *string    `json:"birth_date"`
	Sex             string     `json:"sex"`
	Diagnosis       string     `json:"diagnosis"`
	TargetHeartRate *int       `json:"target_heart_rate"`
	Phone           string     `json:"phone"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// NewProfileResponse maps a domain profile.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	resp := ProfileResponse{
		UserID:          p.UserID,
		Sex:             p.Sex,
		Diagnosis:       p.Diagnosis,
		TargetHeartRate: p.TargetHeartRate,
		Phone:           p.Phone,
	}
	if p.BirthDate != nil {
		s := p.BirthDate.Format(DateLayout)
		resp.BirthDate = &s
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = &p.UpdatedAt
	}
	return resp
}
