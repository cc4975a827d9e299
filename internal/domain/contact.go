package domain

import "time"

// ContactMessage is a submission from the public contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time
}

// ReminderTarget is a patient due for a vitals reminder.
type ReminderTarget struct {
	UserID      string
	DisplayName string
	LineUserID  string
}
