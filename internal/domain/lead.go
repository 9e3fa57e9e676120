package domain

import (
	"time"
)

// LeadStatus tracks where a lead sits in the owner's follow-up workflow.
// The voice core only ever writes LeadStatusNew; the dashboard moves leads
// through the rest of the pipeline.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusClosed    LeadStatus = "closed"
	LeadStatusConverted LeadStatus = "converted"
)

// Urgency levels extracted from the conversation summary.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Lead is the durable outcome of a finished call. CallSid carries a unique
// index so a racing duplicate finalization cannot insert a second row.
type Lead struct {
	ID               string     `json:"id" gorm:"column:id;primaryKey"`
	CallSid          string     `json:"call_sid" gorm:"column:call_sid;uniqueIndex"`
	CallerPhone      string     `json:"caller_phone" gorm:"column:caller_phone"`
	BusinessLine     string     `json:"business_line" gorm:"column:business_line;index"`
	TranscriptText   string     `json:"transcript_text" gorm:"column:transcript_text;type:text"`
	CallerName       string     `json:"caller_name" gorm:"column:caller_name"`
	RequestedService string     `json:"requested_service" gorm:"column:requested_service"`
	Urgency          string     `json:"urgency" gorm:"column:urgency"`
	CallbackPref     string     `json:"callback_pref" gorm:"column:callback_pref"`
	Address          string     `json:"address" gorm:"column:address"`
	Status           LeadStatus `json:"status" gorm:"column:status"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// NotificationChannel identifies an outbound alert channel.
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSMS   NotificationChannel = "sms"
)

// NotificationStatus records the outcome of one delivery attempt.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusLogged  NotificationStatus = "logged"
)

// NotificationRecord is one attempted outbound alert tied to a lead.
// Rows are never deleted.
type NotificationRecord struct {
	ID                string              `json:"id" gorm:"column:id;primaryKey"`
	LeadID            string              `json:"lead_id" gorm:"column:lead_id;index"`
	Channel           NotificationChannel `json:"channel" gorm:"column:channel"`
	SentStatus        NotificationStatus  `json:"sent_status" gorm:"column:sent_status"`
	ErrorMessage      string              `json:"error_message,omitempty" gorm:"column:error_message"`
	ProviderMessageID string              `json:"provider_message_id,omitempty" gorm:"column:provider_message_id"`
	CreatedAt         time.Time           `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time           `json:"updated_at" gorm:"column:updated_at"`
}

func (NotificationRecord) TableName() string {
	return "notification_records"
}
