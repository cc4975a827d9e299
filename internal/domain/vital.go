package domain

import "time"

// Vital is a single self-measured record.
type Vital struct {
	ID         string
	PatientID  string
	Systolic   *int
	Diastolic  *int
	HeartRate  *int
	WeightKg   *float64
	Note       string
	RecordedAt time.Time
	CreatedAt  time.Time
}
