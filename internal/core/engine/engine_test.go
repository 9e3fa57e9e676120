package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/core/tool"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"github.com/leadline-ai/leadline-voice-service/internal/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory session store; upsertErr simulates Redis loss.
type memStore struct {
	sessions  map[string]*session.Session
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*session.Session{}}
}

func (m *memStore) Get(ctx context.Context, callSid string) (*session.Session, error) {
	s, ok := m.sessions[callSid]
	if !ok {
		return nil, nil
	}
	// deep-ish copy so callers mutate their own instance, as with real Redis
	clone := *s
	clone.Transcript = append([]session.TranscriptEntry(nil), s.Transcript...)
	return &clone, nil
}

func (m *memStore) Upsert(ctx context.Context, s *session.Session) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	clone := *s
	clone.Transcript = append([]session.TranscriptEntry(nil), s.Transcript...)
	m.sessions[s.CallSid] = &clone
	return nil
}

func (m *memStore) Delete(ctx context.Context, callSid string) error {
	delete(m.sessions, callSid)
	return nil
}

// stubRunner returns a fixed result and records the turn it saw.
type stubRunner struct {
	result tool.Result
	seen   []model.Message
	system string
	turn   tool.TurnContext
}

func (s *stubRunner) Run(ctx context.Context, system string, conversation []model.Message, tc tool.TurnContext) tool.Result {
	s.system = system
	s.seen = conversation
	s.turn = tc
	return s.result
}

type stubConfigs struct {
	cfg *domain.BusinessConfig
	err error
}

func (s *stubConfigs) GetByLineNumber(ctx context.Context, lineNumber string) (*domain.BusinessConfig, error) {
	return s.cfg, s.err
}

func (s *stubConfigs) Create(ctx context.Context, cfg *domain.BusinessConfig) error { return nil }
func (s *stubConfigs) Update(ctx context.Context, cfg *domain.BusinessConfig) error { return nil }

func TestHandleTurnAppendsBothSides(t *testing.T) {
	store := newMemStore()
	s := session.New("CA1", session.Metadata{BusinessLine: "+15550001111"})
	require.NoError(t, store.Upsert(context.Background(), s))

	runner := &stubRunner{result: tool.Result{Text: "Sure, what's your name?"}}
	eng := NewEngine(store, runner, &stubConfigs{})

	result := eng.HandleTurn(context.Background(), "CA1", "I need a plumber")

	assert.Equal(t, "Sure, what's your name?", result.ReplyText)
	assert.False(t, result.ShouldEndCall)

	stored, err := store.Get(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, stored.Transcript, 2)
	assert.Equal(t, session.RoleCaller, stored.Transcript[0].Role)
	assert.Equal(t, "I need a plumber", stored.Transcript[0].Text)
	assert.Equal(t, session.RoleAgent, stored.Transcript[1].Role)
}

func TestHandleTurnRecoversExistingTranscript(t *testing.T) {
	store := newMemStore()
	s := session.New("CA1", session.Metadata{BusinessLine: "+15550001111"})
	s.Append(session.RoleCaller, "hello")
	s.Append(session.RoleAgent, "hi, how can I help?")
	s.Append(session.RoleCaller, "my heater broke")
	s.Append(session.RoleAgent, "what's your address?")
	require.NoError(t, store.Upsert(context.Background(), s))

	runner := &stubRunner{result: tool.Result{Text: "Got it."}}
	eng := NewEngine(store, runner, &stubConfigs{})

	// as after a process restart: only the store knows the history
	eng.HandleTurn(context.Background(), "CA1", "12 Elm Street")

	// the runner saw all prior turns plus the new utterance
	require.Len(t, runner.seen, 5)
	assert.Equal(t, model.RoleUser, runner.seen[4].Role)
	assert.Equal(t, "12 Elm Street", runner.seen[4].Content)

	stored, err := store.Get(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, 6)
}

func TestHandleTurnMissingSessionApologizes(t *testing.T) {
	runner := &stubRunner{result: tool.Result{Text: "should not run"}}
	eng := NewEngine(newMemStore(), runner, &stubConfigs{})

	result := eng.HandleTurn(context.Background(), "CA404", "hello?")

	assert.Equal(t, prompts.MissingSessionApology, result.ReplyText)
	assert.True(t, result.ShouldEndCall)
	assert.Nil(t, runner.seen)
	assert.Empty(t, runner.system)
}

func TestHandleTurnSurvivesSessionWriteFailure(t *testing.T) {
	store := newMemStore()
	s := session.New("CA1", session.Metadata{BusinessLine: "+15550001111"})
	require.NoError(t, store.Upsert(context.Background(), s))
	store.upsertErr = errors.New("redis gone")

	runner := &stubRunner{result: tool.Result{Text: "Still here."}}
	eng := NewEngine(store, runner, &stubConfigs{})

	result := eng.HandleTurn(context.Background(), "CA1", "can you hear me?")

	assert.Equal(t, "Still here.", result.ReplyText)
}

func TestHandleTurnEndCallPropagates(t *testing.T) {
	store := newMemStore()
	s := session.New("CA1", session.Metadata{BusinessLine: "+15550001111"})
	require.NoError(t, store.Upsert(context.Background(), s))

	runner := &stubRunner{result: tool.Result{Text: "Goodbye!", EndCallRequested: true}}
	eng := NewEngine(store, runner, &stubConfigs{})

	result := eng.HandleTurn(context.Background(), "CA1", "that's all")

	assert.True(t, result.ShouldEndCall)
	assert.Equal(t, "Goodbye!", result.ReplyText)
}

func TestSystemInstructionUsesBusinessConfig(t *testing.T) {
	store := newMemStore()
	s := session.New("CA1", session.Metadata{BusinessLine: "+15550001111"})
	require.NoError(t, store.Upsert(context.Background(), s))

	cfgs := &stubConfigs{cfg: &domain.BusinessConfig{
		LineNumber:   "+15550001111",
		BusinessName: "Ace Plumbing",
		BusinessType: domain.BusinessTypeHomeServices,
	}}
	runner := &stubRunner{result: tool.Result{Text: "ok"}}
	eng := NewEngine(store, runner, cfgs)
	eng.now = func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	}

	eng.HandleTurn(context.Background(), "CA1", "hi")

	assert.Contains(t, runner.system, "Ace Plumbing")
	assert.Contains(t, runner.system, "September 1, 2026")
}

func TestSessionDemoModeOverridesLiveConfig(t *testing.T) {
	store := newMemStore()
	// outbound demo call against a business whose config is live
	s := session.New("CA1", session.Metadata{
		BusinessLine: "+15550001111",
		IsDemoMode:   true,
	})
	require.NoError(t, store.Upsert(context.Background(), s))

	cfgs := &stubConfigs{cfg: &domain.BusinessConfig{
		LineNumber:   "+15550001111",
		BusinessName: "Ace Plumbing",
		BusinessType: domain.BusinessTypeHomeServices,
		CalendarID:   "cal-real",
	}}
	runner := &stubRunner{result: tool.Result{Text: "ok"}}
	eng := NewEngine(store, runner, cfgs)

	eng.HandleTurn(context.Background(), "CA1", "is tomorrow morning open?")

	// the tool loop must see demo mode so it simulates the calendar
	assert.True(t, runner.turn.Persona.DemoMode)
	assert.Equal(t, "Ace Plumbing", runner.turn.Persona.BusinessName)
}
