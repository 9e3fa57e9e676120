package call

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/notify"
	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"github.com/leadline-ai/leadline-voice-service/internal/prompts"
	"github.com/leadline-ai/leadline-voice-service/internal/repository"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"github.com/leadline-ai/leadline-voice-service/pkg/pubsub"
	"go.uber.org/zap"
)

const fallbackService = "General inquiry (details unavailable)"

// FinalizeRequest carries the raw terminal-event fields. The session's
// metadata takes precedence over these when both exist.
type FinalizeRequest struct {
	CallSid    string
	CallStatus string
	From       string
	To         string
}

// Finalizer turns a finished call into a durable Lead plus owner
// notifications, exactly once per call. The lead table's unique call SID
// index is the hard guard; the session's presence is the soft one.
type Finalizer struct {
	sessions         session.Store
	model            model.Client
	leads            repository.LeadRepository
	notifications    repository.NotificationRepository
	completions      repository.CallCompletionRepository
	businessConfigs  repository.BusinessConfigRepository
	notifier         notify.Notifier
	publisher        pubsub.Publisher
	smsAlertsEnabled bool
}

func NewFinalizer(sessions session.Store, client model.Client, repos repository.RepositoryManager, notifier notify.Notifier, publisher pubsub.Publisher, smsAlertsEnabled bool) *Finalizer {
	return &Finalizer{
		sessions:         sessions,
		model:            client,
		leads:            repos.Lead(),
		notifications:    repos.Notification(),
		completions:      repos.CallCompletion(),
		businessConfigs:  repos.BusinessConfig(),
		notifier:         notifier,
		publisher:        publisher,
		smsAlertsEnabled: smsAlertsEnabled,
	}
}

// Finalize processes one terminal event. Every invocation writes its own
// audit row; repeated invocations for the same call end as duplicates
// without a second lead or a second round of notifications.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) {
	entry := &domain.CallCompletion{
		ID:         uuid.New().String(),
		CallSid:    req.CallSid,
		CallStatus: req.CallStatus,
		Status:     domain.CompletionStatusReceived,
	}
	if err := f.completions.Create(ctx, entry); err != nil {
		logger.Base().Error("completion audit create failed",
			zap.String("call_sid", req.CallSid),
			zap.Error(err))
	}

	sess, err := f.sessions.Get(ctx, req.CallSid)
	if err != nil {
		f.failEntry(ctx, entry, fmt.Sprintf("session lookup: %v", err))
		return
	}

	if sess == nil || len(sess.Transcript) == 0 {
		f.resolveWithoutTranscript(ctx, entry, req, sess)
		return
	}

	entry.Status = domain.CompletionStatusProcessing
	f.updateEntry(ctx, entry)

	businessLine := sess.Metadata.BusinessLine
	if businessLine == "" {
		businessLine = req.To
	}
	callerPhone := sess.Metadata.CallerNumber
	if callerPhone == "" {
		callerPhone = req.From
	}

	summary := f.extractSummary(ctx, sess)

	lead := &domain.Lead{
		ID:               uuid.New().String(),
		CallSid:          req.CallSid,
		CallerPhone:      callerPhone,
		BusinessLine:     businessLine,
		TranscriptText:   sess.TranscriptText(),
		CallerName:       summary.Name,
		RequestedService: summary.Service,
		Urgency:          summary.Urgency,
		CallbackPref:     summary.CallbackPref,
		Address:          summary.Address,
		Status:           domain.LeadStatusNew,
	}

	created, err := f.leads.CreateIfAbsent(ctx, lead)
	if err != nil {
		// Session stays in place so a later terminal event can retry.
		f.failEntry(ctx, entry, fmt.Sprintf("lead insert: %v", err))
		return
	}
	if !created {
		// A concurrent finalizer got here first.
		existing, _ := f.leads.GetByCallSid(ctx, req.CallSid)
		if existing != nil {
			entry.LeadID = existing.ID
		}
		entry.Status = domain.CompletionStatusDuplicate
		f.updateEntry(ctx, entry)
		f.deleteSession(ctx, req.CallSid)
		f.publish(ctx, pubsub.LeadEvent{
			Type:         pubsub.EventCallCompleted,
			LeadID:       entry.LeadID,
			CallSid:      req.CallSid,
			BusinessLine: businessLine,
			CallerPhone:  callerPhone,
		})
		return
	}

	persona := f.resolvePersona(ctx, businessLine)
	emailSent, smsSent := f.notifyOwner(ctx, lead, persona)

	entry.Status = domain.CompletionStatusCompleted
	entry.LeadID = lead.ID
	entry.EmailSent = emailSent
	entry.SmsSent = smsSent
	f.updateEntry(ctx, entry)

	f.deleteSession(ctx, req.CallSid)

	f.publish(ctx, pubsub.LeadEvent{
		Type:         pubsub.EventLeadCreated,
		LeadID:       lead.ID,
		CallSid:      lead.CallSid,
		BusinessLine: lead.BusinessLine,
		CallerPhone:  lead.CallerPhone,
		Urgency:      lead.Urgency,
	})

	logger.Base().Info("call finalized",
		zap.String("call_sid", req.CallSid),
		zap.String("lead_id", lead.ID),
		zap.String("urgency", lead.Urgency),
		zap.Bool("email_sent", emailSent),
		zap.Bool("sms_sent", smsSent))
}

// resolveWithoutTranscript closes out an event that has no conversation to
// summarize: either the call was already finalized (duplicate) or it never
// produced a usable session (error).
func (f *Finalizer) resolveWithoutTranscript(ctx context.Context, entry *domain.CallCompletion, req FinalizeRequest, sess *session.Session) {
	existing, err := f.leads.GetByCallSid(ctx, req.CallSid)
	if err != nil {
		f.failEntry(ctx, entry, fmt.Sprintf("lead lookup: %v", err))
		return
	}

	if existing != nil {
		entry.Status = domain.CompletionStatusDuplicate
		entry.LeadID = existing.ID
	} else {
		entry.Status = domain.CompletionStatusError
		entry.ErrorMessage = "no session transcript and no existing lead"
	}
	f.updateEntry(ctx, entry)

	if sess != nil {
		f.deleteSession(ctx, req.CallSid)
	}

	// No lead came out of this event, but downstream consumers still track
	// call volume off the topic.
	f.publish(ctx, pubsub.LeadEvent{
		Type:         pubsub.EventCallCompleted,
		LeadID:       entry.LeadID,
		CallSid:      req.CallSid,
		BusinessLine: req.To,
		CallerPhone:  req.From,
	})
}

// publish sends a finalization event, fire-and-forget.
func (f *Finalizer) publish(ctx context.Context, ev pubsub.LeadEvent) {
	if f.publisher == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := f.publisher.PublishLeadEvent(ctx, ev); err != nil {
		logger.Base().Warn("event publish failed",
			zap.String("call_sid", ev.CallSid),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
	}
}

type leadSummary struct {
	Name         string `json:"name"`
	Service      string `json:"service"`
	Urgency      string `json:"urgency"`
	CallbackPref string `json:"callback_pref"`
	Address      string `json:"address"`
}

// extractSummary asks the model for a structured read of the transcript.
// Any failure degrades to a minimal summary; the raw transcript is always
// preserved on the lead, so nothing is lost.
func (f *Finalizer) extractSummary(ctx context.Context, sess *session.Session) leadSummary {
	fallback := leadSummary{Service: fallbackService, Urgency: domain.UrgencyMedium}

	completion, err := f.model.Complete(ctx, model.Request{
		System: prompts.SummaryInstruction(),
		Messages: []model.Message{
			{Role: model.RoleUser, Content: sess.TranscriptText()},
		},
	})
	if err != nil {
		logger.Base().Warn("summary extraction failed",
			zap.String("call_sid", sess.CallSid),
			zap.Error(err))
		return fallback
	}

	parsed, err := parseSummaryJSON(completion.Text)
	if err != nil {
		logger.Base().Warn("summary response unparseable",
			zap.String("call_sid", sess.CallSid),
			zap.Error(err))
		return fallback
	}

	switch parsed.Urgency {
	case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
	default:
		parsed.Urgency = domain.UrgencyMedium
	}
	if strings.TrimSpace(parsed.Service) == "" {
		parsed.Service = fallbackService
	}
	return parsed
}

// parseSummaryJSON tolerates the usual model formatting noise around the
// JSON object, like code fences and lead-in prose.
func parseSummaryJSON(raw string) (leadSummary, error) {
	var summary leadSummary

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return summary, fmt.Errorf("no json object in summary response")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &summary); err != nil {
		return summary, fmt.Errorf("decode summary: %w", err)
	}
	return summary, nil
}

func (f *Finalizer) notifyOwner(ctx context.Context, lead *domain.Lead, persona config.Persona) (emailSent, smsSent bool) {
	if persona.OwnerEmail != "" {
		subject := fmt.Sprintf("New lead for %s: %s", persona.BusinessName, lead.RequestedService)
		body := leadEmailBody(lead)
		emailSent = f.deliver(ctx, lead.ID, domain.NotificationChannelEmail, func(ctx context.Context) (string, error) {
			return f.notifier.SendEmail(ctx, persona.OwnerEmail, subject, body)
		})
	}

	if persona.OwnerPhone != "" {
		if !f.smsAlertsEnabled {
			// Record what would have been sent so the pipeline is
			// auditable before SMS goes live.
			f.recordLogged(ctx, lead.ID, domain.NotificationChannelSMS)
		} else {
			body := leadSMSBody(lead, persona.BusinessName)
			smsSent = f.deliver(ctx, lead.ID, domain.NotificationChannelSMS, func(ctx context.Context) (string, error) {
				return f.notifier.SendSMS(ctx, persona.OwnerPhone, body)
			})
		}
	}

	return emailSent, smsSent
}

// deliver records the attempt, sends, then records the outcome. A send
// failure never aborts finalization.
func (f *Finalizer) deliver(ctx context.Context, leadID string, channel domain.NotificationChannel, send func(context.Context) (string, error)) bool {
	record := &domain.NotificationRecord{
		ID:         uuid.New().String(),
		LeadID:     leadID,
		Channel:    channel,
		SentStatus: domain.NotificationStatusPending,
	}
	if err := f.notifications.Create(ctx, record); err != nil {
		logger.Base().Error("notification record create failed",
			zap.String("lead_id", leadID),
			zap.String("channel", string(channel)),
			zap.Error(err))
	}

	providerID, err := send(ctx)
	if err != nil {
		logger.Base().Warn("notification send failed",
			zap.String("lead_id", leadID),
			zap.String("channel", string(channel)),
			zap.Error(err))
		f.updateOutcome(ctx, record.ID, domain.NotificationStatusFailed, err.Error(), "")
		return false
	}

	f.updateOutcome(ctx, record.ID, domain.NotificationStatusSent, "", providerID)
	return true
}

func (f *Finalizer) recordLogged(ctx context.Context, leadID string, channel domain.NotificationChannel) {
	record := &domain.NotificationRecord{
		ID:         uuid.New().String(),
		LeadID:     leadID,
		Channel:    channel,
		SentStatus: domain.NotificationStatusLogged,
	}
	if err := f.notifications.Create(ctx, record); err != nil {
		logger.Base().Error("notification record create failed",
			zap.String("lead_id", leadID),
			zap.String("channel", string(channel)),
			zap.Error(err))
	}
}

func (f *Finalizer) resolvePersona(ctx context.Context, businessLine string) config.Persona {
	cfg, err := f.businessConfigs.GetByLineNumber(ctx, businessLine)
	if err != nil {
		logger.Base().Warn("business config lookup failed during finalize",
			zap.String("business_line", businessLine),
			zap.Error(err))
		return config.DefaultPersona()
	}
	return config.ResolvePersona(cfg)
}

func (f *Finalizer) failEntry(ctx context.Context, entry *domain.CallCompletion, message string) {
	entry.Status = domain.CompletionStatusError
	entry.ErrorMessage = message
	f.updateEntry(ctx, entry)
	logger.Base().Error("finalization failed",
		zap.String("call_sid", entry.CallSid),
		zap.String("reason", message))
}

func (f *Finalizer) updateEntry(ctx context.Context, entry *domain.CallCompletion) {
	if err := f.completions.Update(ctx, entry); err != nil {
		logger.Base().Error("completion audit update failed",
			zap.String("call_sid", entry.CallSid),
			zap.Error(err))
	}
}

func (f *Finalizer) updateOutcome(ctx context.Context, id string, status domain.NotificationStatus, errorMessage, providerMessageID string) {
	if err := f.notifications.UpdateOutcome(ctx, id, status, errorMessage, providerMessageID); err != nil {
		logger.Base().Error("notification outcome update failed",
			zap.String("record_id", id),
			zap.Error(err))
	}
}

func (f *Finalizer) deleteSession(ctx context.Context, callSid string) {
	if err := f.sessions.Delete(ctx, callSid); err != nil {
		logger.Base().Warn("session delete failed",
			zap.String("call_sid", callSid),
			zap.Error(err))
	}
}

func leadEmailBody(lead *domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new lead just came in from a phone call.\n\n")
	fmt.Fprintf(&b, "Caller: %s (%s)\n", orUnknown(lead.CallerName), lead.CallerPhone)
	fmt.Fprintf(&b, "Requested: %s\n", lead.RequestedService)
	fmt.Fprintf(&b, "Urgency: %s\n", lead.Urgency)
	if lead.CallbackPref != "" {
		fmt.Fprintf(&b, "Callback preference: %s\n", lead.CallbackPref)
	}
	if lead.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", lead.Address)
	}
	fmt.Fprintf(&b, "\nTranscript:\n%s\n", lead.TranscriptText)
	return b.String()
}

func leadSMSBody(lead *domain.Lead, businessName string) string {
	return fmt.Sprintf("%s: new %s lead from %s (%s). %s",
		businessName, lead.Urgency, orUnknown(lead.CallerName), lead.CallerPhone, lead.RequestedService)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown caller"
	}
	return s
}
