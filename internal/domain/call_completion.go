package domain

import (
	"time"
)

// CompletionStatus tracks the processing state of one terminal webhook event.
type CompletionStatus string

const (
	CompletionStatusReceived   CompletionStatus = "received"
	CompletionStatusProcessing CompletionStatus = "processing"
	CompletionStatusCompleted  CompletionStatus = "completed"
	CompletionStatusDuplicate  CompletionStatus = "duplicate"
	CompletionStatusError      CompletionStatus = "error"
)

// CallCompletion is an audit row written for every terminal webhook event,
// including duplicates and out-of-order deliveries. One call can therefore
// have several rows, but at most one ends up CompletionStatusCompleted.
type CallCompletion struct {
	ID           string           `json:"id" gorm:"column:id;primaryKey"`
	CallSid      string           `json:"call_sid" gorm:"column:call_sid;index"`
	CallStatus   string           `json:"call_status" gorm:"column:call_status"`
	Status       CompletionStatus `json:"status" gorm:"column:status"`
	LeadID       string           `json:"lead_id,omitempty" gorm:"column:lead_id"`
	EmailSent    bool             `json:"email_sent" gorm:"column:email_sent"`
	SmsSent      bool             `json:"sms_sent" gorm:"column:sms_sent"`
	ErrorMessage string           `json:"error_message,omitempty" gorm:"column:error_message"`
	CreatedAt    time.Time        `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time        `json:"updated_at" gorm:"column:updated_at"`
}

func (CallCompletion) TableName() string {
	return "call_completions"
}
