package dto

import (
	"time"

	"github.com/heartlog/rehab-api/internal/domain"
)

// VitalRequest records a measurement.
type VitalRequest struct {
	Systolic   *int       `json:"systolic"`
	Diastolic  *int       `json:"diastolic"`
	HeartRate  *int       `json:"heart_rate"`
	WeightKg   *float64   `json:"weight_kg"`
	Note       string     `json:"note"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// VitalResponse response.
type VitalResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	Systolic   *int      `json:"systolic"`
	Diastolic  *int      `json:"diastolic"`
	HeartRate  *int      `json:"heart_rate"`
	WeightKg   *float64  `json:"weight_kg"`
	Note       string    `json:"note"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewVitalResponse maps a domain vital.
func NewVitalResponse(v *domain.Vital) VitalResponse {
	return VitalResponse{
		ID:         v.ID,
		PatientID:  v.PatientID,
		Systolic:   v.Systolic,
		Diastolic:  v.Diastolic,
		HeartRate:  v.HeartRate,
		WeightKg:   v.WeightKg,
		Note:       v.Note,
		RecordedAt: v.RecordedAt,
	}
}

// NewVitalList maps a slice, never returning nil.
func NewVitalList(vitals []domain.Vital) []VitalResponse {
	items := make([]VitalResponse, 0, len(vitals))
	for i := range vitals {
		items = append(items, NewVitalResponse(&vitals[i]))
	}
	return items
}
