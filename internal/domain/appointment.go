package domain

import (
	"time"
)

// Appointment is the in-app booking record created by the book_appointment
// tool. It is authoritative: an external calendar write may fail without
// invalidating the booking.
type Appointment struct {
	ID              string    `json:"id" gorm:"column:id;primaryKey"`
	CallSid         string    `json:"call_sid" gorm:"column:call_sid;index"`
	BusinessLine    string    `json:"business_line" gorm:"column:business_line;index"`
	CalendarID      string    `json:"calendar_id" gorm:"column:calendar_id"`
	Summary         string    `json:"summary" gorm:"column:summary"`
	StartTime       time.Time `json:"start_time" gorm:"column:start_time"`
	EndTime         time.Time `json:"end_time" gorm:"column:end_time"`
	ExternalEventID string    `json:"external_event_id,omitempty" gorm:"column:external_event_id"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}
