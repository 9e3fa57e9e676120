package session

import (
	"strings"
	"time"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// TranscriptEntry is one utterance in the conversation. Tool round-trips
// are transient and never appear here.
type TranscriptEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Metadata is set when the session is created and refined at most once on
// the first turn.
type Metadata struct {
	CallerNumber string    `json:"callerNumber"`
	BusinessLine string    `json:"businessLineNumber"`
	BusinessName string    `json:"businessName"`
	CalendarID   string    `json:"calendarId"`
	IsDemoMode   bool      `json:"isDemoMode"`
	StartedAt    time.Time `json:"startedAt"`
}

// Session is the durable in-progress state of one call, keyed by the
// gateway's call SID. It lives in Redis so a process restart mid-call
// resumes with the full transcript.
type Session struct {
	CallSid    string            `json:"callSid"`
	Transcript []TranscriptEntry `json:"transcript"`
	Metadata   Metadata          `json:"metadata"`
}

// New creates a session for a freshly started call.
func New(callSid string, meta Metadata) *Session {
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now().UTC()
	}
	return &Session{
		CallSid:    callSid,
		Transcript: []TranscriptEntry{},
		Metadata:   meta,
	}
}

// Append adds one transcript entry.
func (s *Session) Append(role Role, text string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text})
}

// TranscriptText renders the transcript as plain text for summaries and
// lead records.
func (s *Session) TranscriptText() string {
	var b strings.Builder
	for _, entry := range s.Transcript {
		b.WriteString(string(entry.Role))
		b.WriteString(": ")
		b.WriteString(entry.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
