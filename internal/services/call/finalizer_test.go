package call

import (
	"context"
	"errors"
	"testing"

	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"github.com/leadline-ai/leadline-voice-service/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	sessions map[string]*session.Session
	getErr   error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*session.Session)}
}

func (m *memSessions) Get(ctx context.Context, callSid string) (*session.Session, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.sessions[callSid], nil
}

func (m *memSessions) Upsert(ctx context.Context, s *session.Session) error {
	m.sessions[s.CallSid] = s
	return nil
}

func (m *memSessions) Delete(ctx context.Context, callSid string) error {
	delete(m.sessions, callSid)
	return nil
}

type stubSummaryModel struct {
	text string
	err  error
}

func (s *stubSummaryModel) Complete(ctx context.Context, req model.Request) (*model.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Completion{Text: s.text}, nil
}

type memLeads struct {
	byCallSid map[string]*domain.Lead
	insertErr error
}

func newMemLeads() *memLeads {
	return &memLeads{byCallSid: make(map[string]*domain.Lead)}
}

func (m *memLeads) CreateIfAbsent(ctx context.Context, lead *domain.Lead) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, ok := m.byCallSid[lead.CallSid]; ok {
		return false, nil
	}
	m.byCallSid[lead.CallSid] = lead
	return true, nil
}

func (m *memLeads) GetByCallSid(ctx context.Context, callSid string) (*domain.Lead, error) {
	return m.byCallSid[callSid], nil
}

func (m *memLeads) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	for _, lead := range m.byCallSid {
		if lead.ID == id {
			lead.Status = status
		}
	}
	return nil
}

type memNotifications struct {
	records []*domain.NotificationRecord
}

func (m *memNotifications) Create(ctx context.Context, record *domain.NotificationRecord) error {
	clone := *record
	m.records = append(m.records, &clone)
	return nil
}

func (m *memNotifications) UpdateOutcome(ctx context.Context, id string, status domain.NotificationStatus, errorMessage, providerMessageID string) error {
	for _, r := range m.records {
		if r.ID == id {
			r.SentStatus = status
			r.ErrorMessage = errorMessage
			r.ProviderMessageID = providerMessageID
		}
	}
	return nil
}

func (m *memNotifications) GetByLeadID(ctx context.Context, leadID string) ([]*domain.NotificationRecord, error) {
	var out []*domain.NotificationRecord
	for _, r := range m.records {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memCompletions struct {
	entries []*domain.CallCompletion
}

func (m *memCompletions) Create(ctx context.Context, entry *domain.CallCompletion) error {
	clone := *entry
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memCompletions) Update(ctx context.Context, entry *domain.CallCompletion) error {
	for i, e := range m.entries {
		if e.ID == entry.ID {
			clone := *entry
			m.entries[i] = &clone
		}
	}
	return nil
}

func (m *memCompletions) GetByCallSid(ctx context.Context, callSid string) ([]*domain.CallCompletion, error) {
	var out []*domain.CallCompletion
	for _, e := range m.entries {
		if e.CallSid == callSid {
			out = append(out, e)
		}
	}
	return out, nil
}

type memConfigs struct {
	byLine map[string]*domain.BusinessConfig
}

func (m *memConfigs) GetByLineNumber(ctx context.Context, lineNumber string) (*domain.BusinessConfig, error) {
	return m.byLine[lineNumber], nil
}

func (m *memConfigs) Create(ctx context.Context, cfg *domain.BusinessConfig) error { return nil }
func (m *memConfigs) Update(ctx context.Context, cfg *domain.BusinessConfig) error { return nil }

type fakeOwnerNotifier struct {
	emails   []string
	sms      []string
	emailErr error
	smsErr   error
}

func (f *fakeOwnerNotifier) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	if f.emailErr != nil {
		return "", f.emailErr
	}
	f.emails = append(f.emails, to)
	return "msg-email-1", nil
}

func (f *fakeOwnerNotifier) SendSMS(ctx context.Context, to, body string) (string, error) {
	if f.smsErr != nil {
		return "", f.smsErr
	}
	f.sms = append(f.sms, to)
	return "msg-sms-1", nil
}

type fakeLeadPublisher struct {
	events []pubsub.LeadEvent
}

func (f *fakeLeadPublisher) PublishLeadEvent(ctx context.Context, ev pubsub.LeadEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type finalizerFixture struct {
	finalizer     *Finalizer
	sessions      *memSessions
	model         *stubSummaryModel
	leads         *memLeads
	notifications *memNotifications
	completions   *memCompletions
	configs       *memConfigs
	notifier      *fakeOwnerNotifier
	publisher     *fakeLeadPublisher
}

func newFinalizerFixture(smsEnabled bool) *finalizerFixture {
	fx := &finalizerFixture{
		sessions:      newMemSessions(),
		model:         &stubSummaryModel{text: `{"name":"Pat","service":"Water heater repair","urgency":"high","callback_pref":"morning","address":"12 Oak St"}`},
		leads:         newMemLeads(),
		notifications: &memNotifications{},
		completions:   &memCompletions{},
		configs:       &memConfigs{byLine: make(map[string]*domain.BusinessConfig)},
		notifier:      &fakeOwnerNotifier{},
		publisher:     &fakeLeadPublisher{},
	}
	fx.finalizer = &Finalizer{
		sessions:         fx.sessions,
		model:            fx.model,
		leads:            fx.leads,
		notifications:    fx.notifications,
		completions:      fx.completions,
		businessConfigs:  fx.configs,
		notifier:         fx.notifier,
		publisher:        fx.publisher,
		smsAlertsEnabled: smsEnabled,
	}
	return fx
}

func (fx *finalizerFixture) seedSession(callSid string) *session.Session {
	sess := session.New(callSid, session.Metadata{
		CallerNumber: "+15550001111",
		BusinessLine: "+15559990000",
		BusinessName: "Ace Plumbing",
	})
	sess.Append(session.RoleAgent, "Thank you for calling Ace Plumbing. How can I help you today?")
	sess.Append(session.RoleCaller, "My water heater is leaking everywhere, I need someone today.")
	sess.Append(session.RoleAgent, "I'm sorry to hear that. Can I get your name?")
	sess.Append(session.RoleCaller, "Pat, at 12 Oak Street.")
	fx.sessions.sessions[callSid] = sess
	return sess
}

func (fx *finalizerFixture) seedConfig(line, email, phone string) {
	fx.configs.byLine[line] = &domain.BusinessConfig{
		LineNumber:   line,
		BusinessName: "Ace Plumbing",
		BusinessType: domain.BusinessTypeHomeServices,
		OwnerEmail:   email,
		OwnerPhone:   phone,
	}
}

func finalizeOnce(fx *finalizerFixture, callSid string) {
	fx.finalizer.Finalize(context.Background(), FinalizeRequest{
		CallSid:    callSid,
		CallStatus: "completed",
		From:       "+15550001111",
		To:         "+15559990000",
	})
}

func TestFinalizeCreatesLeadAndNotifies(t *testing.T) {
	fx := newFinalizerFixture(true)
	sess := fx.seedSession("CA100")
	fx.seedConfig("+15559990000", "owner@aceplumbing.example", "+15558887777")

	finalizeOnce(fx, "CA100")

	lead := fx.leads.byCallSid["CA100"]
	require.NotNil(t, lead)
	assert.Equal(t, "Pat", lead.CallerName)
	assert.Equal(t, "Water heater repair", lead.RequestedService)
	assert.Equal(t, domain.UrgencyHigh, lead.Urgency)
	assert.Equal(t, "morning", lead.CallbackPref)
	assert.Equal(t, "+15550001111", lead.CallerPhone)
	assert.Equal(t, sess.TranscriptText(), lead.TranscriptText)
	assert.Equal(t, domain.LeadStatusNew, lead.Status)

	require.Len(t, fx.completions.entries, 1)
	entry := fx.completions.entries[0]
	assert.Equal(t, domain.CompletionStatusCompleted, entry.Status)
	assert.Equal(t, lead.ID, entry.LeadID)
	assert.True(t, entry.EmailSent)
	assert.True(t, entry.SmsSent)

	assert.Equal(t, []string{"owner@aceplumbing.example"}, fx.notifier.emails)
	assert.Equal(t, []string{"+15558887777"}, fx.notifier.sms)

	records, err := fx.notifications.GetByLeadID(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, domain.NotificationStatusSent, r.SentStatus)
		assert.NotEmpty(t, r.ProviderMessageID)
	}

	require.Len(t, fx.publisher.events, 1)
	assert.Equal(t, pubsub.EventLeadCreated, fx.publisher.events[0].Type)
	assert.Equal(t, lead.ID, fx.publisher.events[0].LeadID)

	assert.Nil(t, fx.sessions.sessions["CA100"], "session should be removed after finalization")
}

func TestFinalizeTwiceProducesOneLeadAndTwoAuditRows(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA200")
	fx.seedConfig("+15559990000", "owner@aceplumbing.example", "")

	finalizeOnce(fx, "CA200")
	finalizeOnce(fx, "CA200")

	assert.Len(t, fx.leads.byCallSid, 1)
	assert.Len(t, fx.notifier.emails, 1)

	require.Len(t, fx.completions.entries, 2)
	assert.Equal(t, domain.CompletionStatusCompleted, fx.completions.entries[0].Status)
	assert.Equal(t, domain.CompletionStatusDuplicate, fx.completions.entries[1].Status)
	assert.Equal(t, fx.completions.entries[0].LeadID, fx.completions.entries[1].LeadID)

	// one lead.created, then a call.completed for the duplicate event
	require.Len(t, fx.publisher.events, 2)
	assert.Equal(t, pubsub.EventLeadCreated, fx.publisher.events[0].Type)
	assert.Equal(t, pubsub.EventCallCompleted, fx.publisher.events[1].Type)
	assert.Equal(t, fx.publisher.events[0].LeadID, fx.publisher.events[1].LeadID)
}

func TestFinalizeWithoutSessionAuditsError(t *testing.T) {
	fx := newFinalizerFixture(false)

	finalizeOnce(fx, "CA300")

	assert.Empty(t, fx.leads.byCallSid)
	assert.Empty(t, fx.notifier.emails)

	require.Len(t, fx.completions.entries, 1)
	entry := fx.completions.entries[0]
	assert.Equal(t, domain.CompletionStatusError, entry.Status)
	assert.Contains(t, entry.ErrorMessage, "no session transcript")

	// no lead, but the terminal call still shows up on the topic
	require.Len(t, fx.publisher.events, 1)
	assert.Equal(t, pubsub.EventCallCompleted, fx.publisher.events[0].Type)
	assert.Equal(t, "CA300", fx.publisher.events[0].CallSid)
	assert.Empty(t, fx.publisher.events[0].LeadID)
}

func TestFinalizeEmptyTranscriptSessionAuditsErrorAndCleansUp(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.sessions.sessions["CA310"] = session.New("CA310", session.Metadata{BusinessLine: "+15559990000"})

	finalizeOnce(fx, "CA310")

	assert.Empty(t, fx.leads.byCallSid)
	require.Len(t, fx.completions.entries, 1)
	assert.Equal(t, domain.CompletionStatusError, fx.completions.entries[0].Status)
	assert.Nil(t, fx.sessions.sessions["CA310"])
}

func TestFinalizeSummaryFailureDegradesToMinimalLead(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA400")
	fx.model.err = errors.New("model unavailable")

	finalizeOnce(fx, "CA400")

	lead := fx.leads.byCallSid["CA400"]
	require.NotNil(t, lead)
	assert.Equal(t, "General inquiry (details unavailable)", lead.RequestedService)
	assert.Equal(t, domain.UrgencyMedium, lead.Urgency)
	assert.Empty(t, lead.CallerName)
	assert.NotEmpty(t, lead.TranscriptText, "transcript survives extraction failure")

	require.Len(t, fx.completions.entries, 1)
	assert.Equal(t, domain.CompletionStatusCompleted, fx.completions.entries[0].Status)
}

func TestFinalizeUnparseableSummaryDegrades(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA410")
	fx.model.text = "Sure! Here is what I found about the call."

	finalizeOnce(fx, "CA410")

	lead := fx.leads.byCallSid["CA410"]
	require.NotNil(t, lead)
	assert.Equal(t, "General inquiry (details unavailable)", lead.RequestedService)
	assert.Equal(t, domain.UrgencyMedium, lead.Urgency)
}

func TestFinalizeInvalidUrgencyNormalized(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA420")
	fx.model.text = `{"name":"Pat","service":"Drain cleaning","urgency":"ASAP!!"}`

	finalizeOnce(fx, "CA420")

	lead := fx.leads.byCallSid["CA420"]
	require.NotNil(t, lead)
	assert.Equal(t, domain.UrgencyMedium, lead.Urgency)
}

func TestFinalizeSMSDisabledRecordsLoggedAttempt(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA500")
	fx.seedConfig("+15559990000", "", "+15558887777")

	finalizeOnce(fx, "CA500")

	assert.Empty(t, fx.notifier.sms)

	lead := fx.leads.byCallSid["CA500"]
	require.NotNil(t, lead)
	records, err := fx.notifications.GetByLeadID(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.NotificationChannelSMS, records[0].Channel)
	assert.Equal(t, domain.NotificationStatusLogged, records[0].SentStatus)

	assert.False(t, fx.completions.entries[0].SmsSent)
}

func TestFinalizeEmailFailureStillCompletes(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA600")
	fx.seedConfig("+15559990000", "owner@aceplumbing.example", "")
	fx.notifier.emailErr = errors.New("smtp connect refused")

	finalizeOnce(fx, "CA600")

	lead := fx.leads.byCallSid["CA600"]
	require.NotNil(t, lead)

	entry := fx.completions.entries[0]
	assert.Equal(t, domain.CompletionStatusCompleted, entry.Status)
	assert.False(t, entry.EmailSent)

	records, err := fx.notifications.GetByLeadID(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.NotificationStatusFailed, records[0].SentStatus)
	assert.Contains(t, records[0].ErrorMessage, "smtp connect refused")
}

func TestFinalizeLeadInsertErrorKeepsSession(t *testing.T) {
	fx := newFinalizerFixture(false)
	fx.seedSession("CA700")
	fx.leads.insertErr = errors.New("db down")

	finalizeOnce(fx, "CA700")

	require.Len(t, fx.completions.entries, 1)
	assert.Equal(t, domain.CompletionStatusError, fx.completions.entries[0].Status)
	assert.NotNil(t, fx.sessions.sessions["CA700"], "session kept so a later event can retry")
}
