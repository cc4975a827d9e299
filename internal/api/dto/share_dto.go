package dto

import "github.com/heartlog/rehab-api/internal/domain"

// ShareRequest grants a medical provider access.
type ShareRequest struct {
	ProviderEmail string `json:"provider_email"`
}

// PatientSummary is a patient as listed to a provider.
type PatientSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// NewPatientList maps shared patients.
func NewPatientList(users []domain.User) []PatientSummary {
	items := make([]PatientSummary, 0, len(users))
	for _, u := range users {
		items = append(items, PatientSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email})
	}
	return items
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
