package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventVitalRecorded EventType = "vital_recorded"
	EventFamilyLinked  EventType = "family_linked"
	EventSelfLinked    EventType = "self_linked"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	PatientID string      `json:"patient_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VitalRecordedPayload payload.
type VitalRecordedPayload struct {
	VitalID     string    `json:"vital_id"`
	PatientName string    `json:"patient_name"`
	Systolic    *int      `json:"systolic,omitempty"`
	Diastolic   *int      `json:"diastolic,omitempty"`
	HeartRate   *int      `json:"heart_rate,omitempty"`
	WeightKg    *float64  `json:"weight_kg,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// FamilyLinkedPayload payload.
type FamilyLinkedPayload struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
}

// SelfLinkedPayload payload.
type SelfLinkedPayload struct {
	UserID string `json:"user_id"`
}
