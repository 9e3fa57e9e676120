package domain

import (
	"time"
)

// BusinessType selects a persona preset when a business has not filled in
// its own settings.
type BusinessType string

const (
	BusinessTypeHomeServices BusinessType = "home_services"
	BusinessTypeMedical      BusinessType = "medical"
	BusinessTypeGeneric      BusinessType = "generic"
)

// BusinessConfig is the stored per-line configuration. Zero-valued fields
// fall back to the business-type preset and then to hard defaults; the
// typed merge lives in internal/config.
type BusinessConfig struct {
	ID               string       `json:"id" gorm:"column:id;primaryKey"`
	LineNumber       string       `json:"line_number" gorm:"column:line_number;uniqueIndex"`
	BusinessName     string       `json:"business_name" gorm:"column:business_name"`
	BusinessType     BusinessType `json:"business_type" gorm:"column:business_type"`
	Tone             string       `json:"tone" gorm:"column:tone"`
	RequiredLeadInfo string       `json:"required_lead_info" gorm:"column:required_lead_info"` // comma-separated field names
	CalendarID       string       `json:"calendar_id" gorm:"column:calendar_id"`
	OwnerEmail       string       `json:"owner_email" gorm:"column:owner_email"`
	OwnerPhone       string       `json:"owner_phone" gorm:"column:owner_phone"`
	AppointmentRules string       `json:"appointment_rules" gorm:"column:appointment_rules"`
	DemoMode         bool         `json:"demo_mode" gorm:"column:demo_mode"`
	Disabled         bool         `json:"disabled" gorm:"column:disabled"`
	CreatedAt        time.Time    `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"column:updated_at"`
}

func (BusinessConfig) TableName() string {
	return "business_configs"
}
