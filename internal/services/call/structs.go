package call

import (
	"net/http"
	"strings"
)

// Twilio-style voice webhooks arrive as form-encoded POSTs. These structs
// capture the fields the core consumes; everything else is ignored.

// VoiceEvent is a call-start or speech-capture webhook.
type VoiceEvent struct {
	CallSid      string
	From         string
	To           string
	Direction    string
	SpeechResult string
}

// StatusEvent is a call status callback.
type StatusEvent struct {
	CallSid    string
	From       string
	To         string
	CallStatus string
}

// ParseVoiceEvent reads a voice webhook from the request form.
func ParseVoiceEvent(r *http.Request) VoiceEvent {
	_ = r.ParseForm()
	return VoiceEvent{
		CallSid:      r.PostFormValue("CallSid"),
		From:         r.PostFormValue("From"),
		To:           r.PostFormValue("To"),
		Direction:    r.PostFormValue("Direction"),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
	}
}

// ParseStatusEvent reads a status callback from the request form.
func ParseStatusEvent(r *http.Request) StatusEvent {
	_ = r.ParseForm()
	return StatusEvent{
		CallSid:    r.PostFormValue("CallSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		CallStatus: r.PostFormValue("CallStatus"),
	}
}

// IsOutbound reports whether the call was placed by the provider (demo
// calls); caller and business line swap roles in that case.
func (e VoiceEvent) IsOutbound() bool {
	return strings.HasPrefix(e.Direction, "outbound")
}

// BusinessLine returns the number identifying the owning business.
func (e VoiceEvent) BusinessLine() string {
	if e.IsOutbound() {
		return e.From
	}
	return e.To
}

// CallerNumber returns the end-caller's number.
func (e VoiceEvent) CallerNumber() string {
	if e.IsOutbound() {
		return e.To
	}
	return e.From
}

// terminalStatuses are the gateway statuses that end a call.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// IsTerminal reports whether this status ends the call.
func (e StatusEvent) IsTerminal() bool {
	return terminalStatuses[e.CallStatus]
}
