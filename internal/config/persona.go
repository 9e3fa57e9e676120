package config

import (
	"strings"

	"github.com/leadline-ai/leadline-voice-service/internal/domain"
)

// Persona is the fully resolved per-turn agent configuration. Resolution
// precedence: explicit business fields > business-type preset > hard
// defaults. It is resolved fresh each turn so owner edits take effect
// mid-call-series.
type Persona struct {
	BusinessName     string
	BusinessType     domain.BusinessType
	Tone             string
	RequiredLeadInfo []string
	CalendarID       string
	OwnerEmail       string
	OwnerPhone       string
	AppointmentRules string
	DemoMode         bool
}

type personaPreset struct {
	Tone             string
	RequiredLeadInfo []string
	AppointmentRules string
}

var personaPresets = map[domain.BusinessType]personaPreset{
	domain.BusinessTypeHomeServices: {
		Tone:             "friendly, practical, and reassuring",
		RequiredLeadInfo: []string{"name", "phone", "address", "service"},
		AppointmentRules: "Offer the earliest available weekday slot. Emergencies can be scheduled same-day.",
	},
	domain.BusinessTypeMedical: {
		Tone:             "calm, professional, and discreet",
		RequiredLeadInfo: []string{"name", "phone", "reason for visit"},
		AppointmentRules: "Never promise a specific practitioner. Urgent symptoms should be directed to emergency services.",
	},
	domain.BusinessTypeGeneric: {
		Tone:             "friendly and professional",
		RequiredLeadInfo: []string{"name", "phone", "service"},
		AppointmentRules: "Offer the earliest available slot during business hours.",
	},
}

// DefaultPersona is used when no business configuration exists for the
// dialed line. Calls still get answered; the lead is tagged to the raw
// line number.
func DefaultPersona() Persona {
	preset := personaPresets[domain.BusinessTypeGeneric]
	return Persona{
		BusinessName:     "this business",
		BusinessType:     domain.BusinessTypeGeneric,
		Tone:             preset.Tone,
		RequiredLeadInfo: preset.RequiredLeadInfo,
		AppointmentRules: preset.AppointmentRules,
	}
}

// ResolvePersona merges stored business settings over the business-type
// preset and the hard defaults.
func ResolvePersona(cfg *domain.BusinessConfig) Persona {
	if cfg == nil {
		return DefaultPersona()
	}

	bt := cfg.BusinessType
	preset, ok := personaPresets[bt]
	if !ok {
		bt = domain.BusinessTypeGeneric
		preset = personaPresets[bt]
	}

	p := Persona{
		BusinessName:     cfg.BusinessName,
		BusinessType:     bt,
		Tone:             cfg.Tone,
		RequiredLeadInfo: splitLeadInfo(cfg.RequiredLeadInfo),
		CalendarID:       cfg.CalendarID,
		OwnerEmail:       cfg.OwnerEmail,
		OwnerPhone:       cfg.OwnerPhone,
		AppointmentRules: cfg.AppointmentRules,
		DemoMode:         cfg.DemoMode,
	}

	if p.BusinessName == "" {
		p.BusinessName = DefaultPersona().BusinessName
	}
	if p.Tone == "" {
		p.Tone = preset.Tone
	}
	if len(p.RequiredLeadInfo) == 0 {
		p.RequiredLeadInfo = preset.RequiredLeadInfo
	}
	if p.AppointmentRules == "" {
		p.AppointmentRules = preset.AppointmentRules
	}

	return p
}

func splitLeadInfo(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}
