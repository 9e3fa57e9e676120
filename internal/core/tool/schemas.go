package tool

// Tool name constants
const (
	ToolNameCheckAvailability = "check_availability"
	ToolNameBookAppointment   = "book_appointment"
	ToolNameEndCall           = "end_call"
)

// CheckAvailabilitySchema defines the parameters for the availability tool.
var CheckAvailabilitySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"start": map[string]interface{}{
			"type":        "string",
			"description": "Start of the requested window, RFC 3339 (e.g. 2026-09-02T09:00:00Z).",
		},
		"end": map[string]interface{}{
			"type":        "string",
			"description": "End of the requested window, RFC 3339.",
		},
	},
	"required": []string{"start", "end"},
}

// BookAppointmentSchema defines the parameters for the booking tool.
var BookAppointmentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{
			"type":        "string",
			"description": "Short description of the appointment, including the caller's name.",
		},
		"start": map[string]interface{}{
			"type":        "string",
			"description": "Appointment start, RFC 3339.",
		},
		"end": map[string]interface{}{
			"type":        "string",
			"description": "Appointment end, RFC 3339.",
		},
	},
	"required": []string{"summary", "start", "end"},
}

// EndCallSchema defines the parameters for the call-termination tool.
var EndCallSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Why the call is ending (e.g. 'lead details collected').",
		},
	},
	"required": []string{"reason"},
}
