package domain

import "time"

// Profile holds the clinical details a patient keeps about themselves.
type Profile struct {
	UserID          string
	BirthDate       *time.Time
	Sex             string
	Diagnosis       string
	TargetHeartRate *int
	Phone           string
	UpdatedAt       time.Time
}
