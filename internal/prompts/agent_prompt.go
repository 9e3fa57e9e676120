package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/leadline-ai/leadline-voice-service/internal/config"
)

// AgentInstruction builds the per-turn system instruction from the resolved
// persona. The current time is substituted so the model can reason about
// "tomorrow morning" when checking availability.
func AgentInstruction(p config.Persona, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the phone receptionist for %s. ", p.BusinessName)
	fmt.Fprintf(&b, "Your tone is %s. Keep replies short; they are spoken aloud to a caller.\n\n", p.Tone)

	b.WriteString("Your job on this call:\n")
	fmt.Fprintf(&b, "1. Collect the following details from the caller: %s.\n", strings.Join(p.RequiredLeadInfo, ", "))
	b.WriteString("2. If the caller wants an appointment, use check_availability before offering a slot, then book_appointment to confirm it.\n")
	b.WriteString("3. Once you have the required details (and any booking is done), say a brief closing line and call end_call.\n\n")

	fmt.Fprintf(&b, "Appointment rules: %s\n", p.AppointmentRules)
	if p.CalendarID != "" {
		fmt.Fprintf(&b, "Calendar id for availability checks and bookings: %s\n", p.CalendarID)
	}
	if p.DemoMode {
		b.WriteString("This is a demo call; treat any requested slot as available.\n")
	}

	fmt.Fprintf(&b, "\nThe current date and time is %s.\n", now.Format("Monday, January 2, 2006 at 3:04 PM MST"))
	b.WriteString("Never invent information you were not told. If you cannot help, take a message and end the call politely.")

	return b.String()
}

// SummaryInstruction prompts a single-shot structured extraction over the
// finished transcript. The model must answer with bare JSON.
func SummaryInstruction() string {
	return `You extract structured lead details from a phone call transcript.
Respond with a single JSON object and nothing else, using exactly these keys:
{"name": string, "service": string, "urgency": "low"|"medium"|"high", "callback_pref": string, "address": string}
Use an empty string for anything the transcript does not contain.`
}
