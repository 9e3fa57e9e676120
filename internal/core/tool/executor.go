package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leadline-ai/leadline-voice-service/internal/adapters/calendar"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/notify"
	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"github.com/leadline-ai/leadline-voice-service/internal/prompts"
	"github.com/leadline-ai/leadline-voice-service/internal/repository"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// MaxRounds bounds the completion+tool loop so a model that keeps
// requesting tools cannot hold the phone line open forever.
const MaxRounds = 5

// TurnContext carries the per-call state a tool execution needs.
type TurnContext struct {
	CallSid      string
	BusinessLine string
	Persona      config.Persona
}

// Result is the outcome of one full tool loop.
type Result struct {
	Text             string
	EndCallRequested bool
}

// executorFunc runs one tool invocation and returns the JSON payload fed
// back to the model.
type executorFunc func(ctx context.Context, argumentsJSON string, tc TurnContext, st *turnState) (string, error)

// ToolDefinition defines a tool with its metadata and execution logic.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Executor    executorFunc
}

// turnState accumulates side effects across rounds within one turn.
type turnState struct {
	endCallRequested bool
}

// Executor owns the tool registry and drives the bounded completion+tool
// loop for one conversation turn.
type Executor struct {
	client       model.Client
	calendar     calendar.Adapter
	appointments repository.AppointmentRepository
	notifier     notify.Notifier
	smsEnabled   bool
	registry     map[string]*ToolDefinition
	specs        []model.ToolSpec
}

func NewExecutor(client model.Client, cal calendar.Adapter, appointments repository.AppointmentRepository, notifier notify.Notifier, smsEnabled bool) *Executor {
	e := &Executor{
		client:       client,
		calendar:     cal,
		appointments: appointments,
		notifier:     notifier,
		smsEnabled:   smsEnabled,
		registry:     map[string]*ToolDefinition{},
	}
	e.registerBuiltInTools()
	return e
}

func (e *Executor) registerBuiltInTools() {
	e.registerTool(&ToolDefinition{
		Name:        ToolNameCheckAvailability,
		Description: "Check whether the business calendar is free in a time window. Always call this before offering a slot.",
		Parameters:  CheckAvailabilitySchema,
		Executor:    e.executeCheckAvailability,
	})
	e.registerTool(&ToolDefinition{
		Name:        ToolNameBookAppointment,
		Description: "Book a confirmed appointment for the caller.",
		Parameters:  BookAppointmentSchema,
		Executor:    e.executeBookAppointment,
	})
	e.registerTool(&ToolDefinition{
		Name:        ToolNameEndCall,
		Description: "Signal that the conversation is complete and the call should end after your closing line.",
		Parameters:  EndCallSchema,
		Executor:    e.executeEndCall,
	})
}

func (e *Executor) registerTool(def *ToolDefinition) {
	e.registry[def.Name] = def
	e.specs = append(e.specs, model.ToolSpec{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  def.Parameters,
	})
}

// Run drives the completion+tool loop until the model produces plain text
// or the round limit is reached. It never returns an unspeakable result.
func (e *Executor) Run(ctx context.Context, system string, conversation []model.Message, tc TurnContext) Result {
	messages := make([]model.Message, len(conversation), len(conversation)+MaxRounds*4)
	copy(messages, conversation)

	st := &turnState{}
	lastAssistantText := ""

	for round := 1; round <= MaxRounds; round++ {
		completion, err := e.client.Complete(ctx, model.Request{
			System:   system,
			Messages: messages,
			Tools:    e.specs,
		})
		if err != nil {
			logger.Base().Error("completion failed, using fallback reply",
				zap.String("call_sid", tc.CallSid),
				zap.Int("round", round),
				zap.Error(err))
			return Result{Text: prompts.FallbackApology, EndCallRequested: st.endCallRequested}
		}

		if !completion.HasToolCalls() {
			text := strings.TrimSpace(completion.Text)
			if text == "" {
				text = fallbackText(st)
			}
			return Result{Text: text, EndCallRequested: st.endCallRequested}
		}

		if text := strings.TrimSpace(completion.Text); text != "" {
			lastAssistantText = text
		}

		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		// Tool calls run sequentially in request order; later results may
		// depend on earlier ones (booking after availability).
		for _, call := range completion.ToolCalls {
			payload := e.executeCall(ctx, call, tc, st)
			messages = append(messages, model.Message{
				Role:       model.RoleTool,
				Content:    payload,
				ToolCallID: call.ID,
			})
		}
	}

	logger.Base().Warn("tool loop hit round limit",
		zap.String("call_sid", tc.CallSid),
		zap.Int("max_rounds", MaxRounds))

	text := lastAssistantText
	if text == "" {
		text = fallbackText(st)
	}
	return Result{Text: text, EndCallRequested: st.endCallRequested}
}

// fallbackText picks the degraded reply when the model produced nothing
// usable. Once end_call has been requested the line is about to hang up,
// so the caller gets a proper goodbye instead of an open question.
func fallbackText(st *turnState) string {
	if st.endCallRequested {
		return prompts.ClosingLine
	}
	return prompts.FallbackProceed
}

func (e *Executor) executeCall(ctx context.Context, call model.ToolCall, tc TurnContext, st *turnState) string {
	def, ok := e.registry[call.Name]
	if !ok {
		logger.Base().Warn("model requested unknown tool",
			zap.String("call_sid", tc.CallSid),
			zap.String("tool", call.Name))
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	logger.Base().Debug("executing tool",
		zap.String("call_sid", tc.CallSid),
		zap.String("tool", call.Name))

	payload, err := def.Executor(ctx, call.Arguments, tc, st)
	if err != nil {
		logger.Base().Warn("tool execution failed",
			zap.String("call_sid", tc.CallSid),
			zap.String("tool", call.Name),
			zap.Error(err))
		return errorPayload(err.Error())
	}
	return payload
}

type checkAvailabilityArgs struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (e *Executor) executeCheckAvailability(ctx context.Context, argumentsJSON string, tc TurnContext, st *turnState) (string, error) {
	var args checkAvailabilityArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid availability arguments: %w", err)
	}
	start, end, err := parseWindow(args.Start, args.End)
	if err != nil {
		return "", err
	}

	// Demo calls never touch the real calendar.
	if tc.Persona.DemoMode {
		return marshalPayload(calendar.Availability{Available: true})
	}
	if tc.Persona.CalendarID == "" {
		return marshalPayload(calendar.Availability{Available: true})
	}

	avail, err := e.calendar.CheckAvailability(ctx, tc.Persona.CalendarID, start, end)
	if err != nil {
		return "", fmt.Errorf("availability check failed: %w", err)
	}
	return marshalPayload(avail)
}

type bookAppointmentArgs struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type bookAppointmentResult struct {
	Success bool `json:"success"`
}

func (e *Executor) executeBookAppointment(ctx context.Context, argumentsJSON string, tc TurnContext, st *turnState) (string, error) {
	var args bookAppointmentArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid booking arguments: %w", err)
	}
	start, end, err := parseWindow(args.Start, args.End)
	if err != nil {
		return "", err
	}

	appt := &domain.Appointment{
		CallSid:      tc.CallSid,
		BusinessLine: tc.BusinessLine,
		CalendarID:   tc.Persona.CalendarID,
		Summary:      args.Summary,
		StartTime:    start,
		EndTime:      end,
	}

	// The in-app record is the booking of record.
	if err := e.appointments.Create(ctx, appt); err != nil {
		logger.Base().Error("in-app booking failed",
			zap.String("call_sid", tc.CallSid),
			zap.Error(err))
		return marshalPayload(bookAppointmentResult{Success: false})
	}

	// External calendar write is best-effort: its failure must not fail
	// the booking.
	if tc.Persona.CalendarID != "" && !tc.Persona.DemoMode {
		eventID, err := e.calendar.CreateEvent(ctx, tc.Persona.CalendarID, args.Summary, start, end)
		if err != nil {
			logger.Base().Warn("external calendar booking failed, in-app booking stands",
				zap.String("call_sid", tc.CallSid),
				zap.String("appointment_id", appt.ID),
				zap.Error(err))
		} else if eventID != "" {
			if err := e.appointments.SetExternalEventID(ctx, appt.ID, eventID); err != nil {
				logger.Base().Warn("failed to link external event",
					zap.String("appointment_id", appt.ID),
					zap.Error(err))
			}
		}
	}

	// A booked appointment is high-value: alert the owner now, not at
	// end of call, in case the call later drops abnormally.
	e.sendBookingAlert(ctx, tc, args.Summary, start)

	return marshalPayload(bookAppointmentResult{Success: true})
}

func (e *Executor) sendBookingAlert(ctx context.Context, tc TurnContext, summary string, start time.Time) {
	body := fmt.Sprintf("New appointment booked by phone for %s: %s at %s.",
		tc.Persona.BusinessName, summary, start.Format("Mon Jan 2 3:04 PM"))

	if tc.Persona.OwnerEmail != "" {
		if _, err := e.notifier.SendEmail(ctx, tc.Persona.OwnerEmail, "New appointment booked", body); err != nil {
			logger.Base().Warn("booking email failed",
				zap.String("call_sid", tc.CallSid),
				zap.Error(err))
		}
	}
	if e.smsEnabled && tc.Persona.OwnerPhone != "" {
		if _, err := e.notifier.SendSMS(ctx, tc.Persona.OwnerPhone, body); err != nil {
			logger.Base().Warn("booking sms failed",
				zap.String("call_sid", tc.CallSid),
				zap.Error(err))
		}
	}
}

type endCallArgs struct {
	Reason string `json:"reason"`
}

func (e *Executor) executeEndCall(ctx context.Context, argumentsJSON string, tc TurnContext, st *turnState) (string, error) {
	var args endCallArgs
	_ = json.Unmarshal([]byte(argumentsJSON), &args)

	st.endCallRequested = true
	logger.Base().Info("end call requested",
		zap.String("call_sid", tc.CallSid),
		zap.String("reason", args.Reason))

	return marshalPayload(map[string]string{"status": "acknowledged"})
}

func parseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := parseTime(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q", startRaw)
	}
	end, err := parseTime(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q", endRaw)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end time must be after start time")
	}
	return start, end, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04", raw)
}

func marshalPayload(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool payload: %w", err)
	}
	return string(b), nil
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
