package engine

import (
	"context"
	"time"

	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/core/tool"
	"github.com/leadline-ai/leadline-voice-service/internal/prompts"
	"github.com/leadline-ai/leadline-voice-service/internal/repository"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// ToolRunner drives one bounded completion+tool loop. Implemented by
// tool.Executor.
type ToolRunner interface {
	Run(ctx context.Context, system string, conversation []model.Message, tc tool.TurnContext) tool.Result
}

// TurnResult is what the lifecycle controller needs to answer the gateway.
type TurnResult struct {
	ReplyText     string
	ShouldEndCall bool
}

// Engine orchestrates one conversation turn: load session, append the
// caller utterance, run the tool loop, append the reply, persist.
type Engine struct {
	sessions        session.Store
	runner          ToolRunner
	businessConfigs repository.BusinessConfigRepository
	now             func() time.Time
}

func NewEngine(sessions session.Store, runner ToolRunner, businessConfigs repository.BusinessConfigRepository) *Engine {
	return &Engine{
		sessions:        sessions,
		runner:          runner,
		businessConfigs: businessConfigs,
		now:             time.Now,
	}
}

// HandleTurn runs one caller-utterance/agent-reply exchange. It always
// returns a speakable reply; internal failures degrade, they do not
// propagate.
func (e *Engine) HandleTurn(ctx context.Context, callSid, utterance string) TurnResult {
	s, err := e.sessions.Get(ctx, callSid)
	if err != nil {
		logger.Base().Error("session load failed",
			zap.String("call_sid", callSid),
			zap.Error(err))
		return TurnResult{ReplyText: prompts.FallbackApology}
	}
	if s == nil {
		// The lifecycle controller creates the session on call start, so
		// a missing one here is a protocol error. Apologize and hang up;
		// the next call starts clean.
		logger.Base().Error("no session for continuation event",
			zap.String("call_sid", callSid))
		return TurnResult{ReplyText: prompts.MissingSessionApology, ShouldEndCall: true}
	}

	if utterance != "" {
		s.Append(session.RoleCaller, utterance)
		e.persist(ctx, s)
	}

	persona := e.resolvePersona(ctx, s.Metadata.BusinessLine)
	// Demo state is fixed at call start (outbound demo calls flag it even
	// when the business config is live), so the session wins over config.
	persona.DemoMode = persona.DemoMode || s.Metadata.IsDemoMode
	system := prompts.AgentInstruction(persona, e.now())

	result := e.runner.Run(ctx, system, transcriptMessages(s), tool.TurnContext{
		CallSid:      callSid,
		BusinessLine: s.Metadata.BusinessLine,
		Persona:      persona,
	})

	s.Append(session.RoleAgent, result.Text)
	e.persist(ctx, s)

	return TurnResult{ReplyText: result.Text, ShouldEndCall: result.EndCallRequested}
}

// resolvePersona re-reads the business configuration every turn so owner
// edits take effect immediately. A lookup failure degrades to defaults.
func (e *Engine) resolvePersona(ctx context.Context, businessLine string) config.Persona {
	cfg, err := e.businessConfigs.GetByLineNumber(ctx, businessLine)
	if err != nil {
		logger.Base().Warn("business config lookup failed, using defaults",
			zap.String("business_line", businessLine),
			zap.Error(err))
		return config.DefaultPersona()
	}
	return config.ResolvePersona(cfg)
}

// persist writes the session; a failure costs crash-resilience for this
// turn only and must not kill the live call.
func (e *Engine) persist(ctx context.Context, s *session.Session) {
	if err := e.sessions.Upsert(ctx, s); err != nil {
		logger.Base().Error("session write failed, continuing with in-memory state",
			zap.String("call_sid", s.CallSid),
			zap.Error(err))
	}
}

// transcriptMessages converts the stored transcript into completion
// messages. Tool round-trips are transient and never stored, so this is a
// straight role mapping.
func transcriptMessages(s *session.Session) []model.Message {
	messages := make([]model.Message, 0, len(s.Transcript))
	for _, entry := range s.Transcript {
		role := model.RoleUser
		if entry.Role == session.RoleAgent {
			role = model.RoleAssistant
		}
		messages = append(messages, model.Message{Role: role, Content: entry.Text})
	}
	return messages
}
