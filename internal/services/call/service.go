package call

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/tts"
	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/core/engine"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/prompts"
	"github.com/leadline-ai/leadline-voice-service/internal/repository"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

const (
	gatherAction = "/webhook/voice/gather"

	// Breathing room so the gateway can queue the closing audio before the
	// finalizer races the status callback. Finalization is idempotent, so
	// this is latency tuning, not correctness.
	defaultFinalizeDelay = 2 * time.Second
)

// TurnHandler runs one conversation turn. Implemented by engine.Engine.
type TurnHandler interface {
	HandleTurn(ctx context.Context, callSid, utterance string) engine.TurnResult
}

// AudioStore uploads a synthesized clip and returns a playable URL.
// Implemented by gcs.GCSClient.
type AudioStore interface {
	UploadAudio(ctx context.Context, objectPath, contentType string, audio []byte) (string, error)
}

// CallFinalizer closes out a finished call. Implemented by Finalizer.
type CallFinalizer interface {
	Finalize(ctx context.Context, req FinalizeRequest)
}

// Service is the webhook-facing call lifecycle controller. Every handler
// converges on a valid voice response, whatever breaks internally.
type Service struct {
	engine          TurnHandler
	sessions        session.Store
	businessConfigs repository.BusinessConfigRepository
	finalizer       CallFinalizer
	synth           tts.Synthesizer
	audio           AudioStore
	finalizeDelay   time.Duration
}

func NewService(turns TurnHandler, sessions session.Store, businessConfigs repository.BusinessConfigRepository, finalizer CallFinalizer, synth tts.Synthesizer, audio AudioStore) *Service {
	return &Service{
		engine:          turns,
		sessions:        sessions,
		businessConfigs: businessConfigs,
		finalizer:       finalizer,
		synth:           synth,
		audio:           audio,
		finalizeDelay:   defaultFinalizeDelay,
	}
}

// SetupRoutes registers the webhook endpoints.
func (s *Service) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/voice", s.HandleVoice).Methods(http.MethodPost)
	router.HandleFunc(gatherAction, s.HandleGather).Methods(http.MethodPost)
	router.HandleFunc("/webhook/voice/status", s.HandleStatus).Methods(http.MethodPost)
}

// HandleVoice answers a call-started webhook: recover or create the
// session, greet the caller, and ask the gateway to capture speech.
func (s *Service) HandleVoice(w http.ResponseWriter, r *http.Request) {
	ev := ParseVoiceEvent(r)
	if ev.CallSid == "" {
		logger.Base().Warn("voice webhook without call sid")
		s.writeTwiML(w, []twiml.Element{twiml.VoiceSay{Message: prompts.FallbackApology}, twiml.VoiceHangup{}})
		return
	}

	ctx := r.Context()
	persona := s.resolvePersona(ctx, ev.BusinessLine())

	existing, err := s.sessions.Get(ctx, ev.CallSid)
	if err != nil {
		logger.Base().Error("session lookup failed on call start",
			zap.String("call_sid", ev.CallSid),
			zap.Error(err))
	}
	if existing == nil {
		// First event for this call (or a restart lost nothing): create
		// the session. If one exists it is reused, which is what resumes
		// a call after a process restart.
		fresh := session.New(ev.CallSid, session.Metadata{
			CallerNumber: ev.CallerNumber(),
			BusinessLine: ev.BusinessLine(),
			BusinessName: persona.BusinessName,
			CalendarID:   persona.CalendarID,
			IsDemoMode:   persona.DemoMode || ev.IsOutbound(),
		})
		if err := s.sessions.Upsert(ctx, fresh); err != nil {
			logger.Base().Error("session create failed, call continues without recovery",
				zap.String("call_sid", ev.CallSid),
				zap.Error(err))
		}
		logger.Base().Info("call started",
			zap.String("call_sid", ev.CallSid),
			zap.String("business_line", ev.BusinessLine()),
			zap.Bool("outbound", ev.IsOutbound()))
	} else {
		logger.Base().Info("call resumed with existing session",
			zap.String("call_sid", ev.CallSid),
			zap.Int("transcript_len", len(existing.Transcript)))
	}

	greeting := fmt.Sprintf("Thank you for calling %s. How can I help you today?", persona.BusinessName)
	if ev.IsOutbound() {
		greeting = fmt.Sprintf("Hi! This is the automated assistant for %s calling with a quick demo. Feel free to talk to me like a customer would.", persona.BusinessName)
	}

	s.writeTwiML(w, []twiml.Element{s.gather(s.speech(ctx, ev.CallSid, greeting))})
}

// HandleGather processes one captured utterance as a conversation turn.
func (s *Service) HandleGather(w http.ResponseWriter, r *http.Request) {
	ev := ParseVoiceEvent(r)
	ctx := r.Context()

	if ev.SpeechResult == "" {
		// Caller silence is not a conversation event; just listen again.
		s.writeTwiML(w, []twiml.Element{s.gather(s.speech(ctx, ev.CallSid, "Sorry, I didn't catch that. Could you say it again?"))})
		return
	}

	result := s.engine.HandleTurn(ctx, ev.CallSid, ev.SpeechResult)

	if result.ShouldEndCall {
		// The caller must hear the closing line before the hangup
		// directive, and finalization must not delay the response.
		elements := append(s.speech(ctx, ev.CallSid, result.ReplyText), twiml.VoiceHangup{})
		s.writeTwiML(w, elements)
		s.scheduleFinalize(ev, "agent-completed")
		return
	}

	s.writeTwiML(w, []twiml.Element{s.gather(s.speech(ctx, ev.CallSid, result.ReplyText))})
}

// HandleStatus absorbs status callbacks. Every terminal event is audited;
// the finalizer itself is idempotent, so duplicates are harmless.
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ev := ParseStatusEvent(r)
	if ev.CallSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	if !ev.IsTerminal() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	logger.Base().Info("terminal status event",
		zap.String("call_sid", ev.CallSid),
		zap.String("call_status", ev.CallStatus))

	s.finalizer.Finalize(r.Context(), FinalizeRequest{
		CallSid:    ev.CallSid,
		CallStatus: ev.CallStatus,
		From:       ev.From,
		To:         ev.To,
	})

	w.WriteHeader(http.StatusOK)
}

func (s *Service) scheduleFinalize(ev VoiceEvent, callStatus string) {
	go func() {
		time.Sleep(s.finalizeDelay)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s.finalizer.Finalize(ctx, FinalizeRequest{
			CallSid:    ev.CallSid,
			CallStatus: callStatus,
			From:       ev.From,
			To:         ev.To,
		})
	}()
}

func (s *Service) resolvePersona(ctx context.Context, businessLine string) config.Persona {
	cfg, err := s.businessConfigs.GetByLineNumber(ctx, businessLine)
	if err != nil {
		logger.Base().Warn("business config lookup failed on call event",
			zap.String("business_line", businessLine),
			zap.Error(err))
		return config.DefaultPersona()
	}
	return config.ResolvePersona(cfg)
}

// speech renders reply text as voice-response elements: a hosted audio
// clip when synthesis works, gateway text-to-speech otherwise.
func (s *Service) speech(ctx context.Context, callSid, text string) []twiml.Element {
	if s.synth == nil || s.audio == nil {
		return []twiml.Element{twiml.VoiceSay{Message: text}}
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		logger.Base().Debug("speech synthesis unavailable, using gateway tts",
			zap.String("call_sid", callSid),
			zap.Error(err))
		return []twiml.Element{twiml.VoiceSay{Message: text}}
	}

	objectPath := fmt.Sprintf("calls/%s/%s.mp3", callSid, uuid.New().String())
	url, err := s.audio.UploadAudio(ctx, objectPath, "audio/mpeg", audio)
	if err != nil {
		logger.Base().Warn("audio upload failed, using gateway tts",
			zap.String("call_sid", callSid),
			zap.Error(err))
		return []twiml.Element{twiml.VoiceSay{Message: text}}
	}

	return []twiml.Element{twiml.VoicePlay{Url: url}}
}

func (s *Service) gather(inner []twiml.Element) twiml.Element {
	return twiml.VoiceGather{
		Input:               "speech",
		Action:              gatherAction,
		Method:              http.MethodPost,
		SpeechTimeout:       "auto",
		ActionOnEmptyResult: "true",
		InnerElements:       inner,
	}
}

// writeTwiML renders the response document. Even a render failure still
// produces a speakable reply for the caller.
func (s *Service) writeTwiML(w http.ResponseWriter, elements []twiml.Element) {
	doc, err := twiml.Voice(elements)
	if err != nil {
		logger.Base().Error("twiml render failed", zap.Error(err))
		doc = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + prompts.FallbackApology + `</Say></Response>`
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(doc))
}
