package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/leadline-ai/leadline-voice-service/internal/core/engine"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTurns struct {
	result     engine.TurnResult
	utterances []string
}

func (s *stubTurns) HandleTurn(ctx context.Context, callSid, utterance string) engine.TurnResult {
	s.utterances = append(s.utterances, utterance)
	return s.result
}

type recordingFinalizer struct {
	calls chan FinalizeRequest
}

func newRecordingFinalizer() *recordingFinalizer {
	return &recordingFinalizer{calls: make(chan FinalizeRequest, 8)}
}

func (r *recordingFinalizer) Finalize(ctx context.Context, req FinalizeRequest) {
	r.calls <- req
}

func (r *recordingFinalizer) wait(t *testing.T) FinalizeRequest {
	t.Helper()
	select {
	case req := <-r.calls:
		return req
	case <-time.After(time.Second):
		t.Fatal("finalizer was not invoked")
		return FinalizeRequest{}
	}
}

func (r *recordingFinalizer) count() int {
	return len(r.calls)
}

type serviceFixture struct {
	service   *Service
	turns     *stubTurns
	sessions  *memSessions
	configs   *memConfigs
	finalizer *recordingFinalizer
}

func newServiceFixture() *serviceFixture {
	fx := &serviceFixture{
		turns:     &stubTurns{result: engine.TurnResult{ReplyText: "Sure, what's the address?"}},
		sessions:  newMemSessions(),
		configs:   &memConfigs{byLine: make(map[string]*domain.BusinessConfig)},
		finalizer: newRecordingFinalizer(),
	}
	fx.configs.byLine["+15559990000"] = &domain.BusinessConfig{
		LineNumber:   "+15559990000",
		BusinessName: "Ace Plumbing",
		BusinessType: domain.BusinessTypeHomeServices,
	}
	fx.service = NewService(fx.turns, fx.sessions, fx.configs, fx.finalizer, nil, nil)
	fx.service.finalizeDelay = 0
	return fx
}

func postForm(t *testing.T, handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func inboundForm(callSid string) url.Values {
	return url.Values{
		"CallSid":   {callSid},
		"From":      {"+15550001111"},
		"To":        {"+15559990000"},
		"Direction": {"inbound"},
	}
}

func TestHandleVoiceGreetsAndCreatesSession(t *testing.T) {
	fx := newServiceFixture()

	rec := postForm(t, fx.service.HandleVoice, "/webhook/voice", inboundForm("CA1"))

	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Thank you for calling Ace Plumbing")
	assert.Contains(t, body, "<Gather")
	assert.Contains(t, body, gatherAction)

	sess := fx.sessions.sessions["CA1"]
	require.NotNil(t, sess)
	assert.Equal(t, "+15550001111", sess.Metadata.CallerNumber)
	assert.Equal(t, "+15559990000", sess.Metadata.BusinessLine)
	assert.Equal(t, "Ace Plumbing", sess.Metadata.BusinessName)
	assert.False(t, sess.Metadata.IsDemoMode)
}

func TestHandleVoiceOutboundDemoSwapsRoles(t *testing.T) {
	fx := newServiceFixture()
	form := url.Values{
		"CallSid":   {"CA2"},
		"From":      {"+15559990000"},
		"To":        {"+15550001111"},
		"Direction": {"outbound-api"},
	}

	rec := postForm(t, fx.service.HandleVoice, "/webhook/voice", form)

	assert.Contains(t, rec.Body.String(), "demo")

	sess := fx.sessions.sessions["CA2"]
	require.NotNil(t, sess)
	assert.Equal(t, "+15559990000", sess.Metadata.BusinessLine)
	assert.Equal(t, "+15550001111", sess.Metadata.CallerNumber)
	assert.True(t, sess.Metadata.IsDemoMode)
}

func TestHandleVoiceMissingCallSidHangsUp(t *testing.T) {
	fx := newServiceFixture()

	rec := postForm(t, fx.service.HandleVoice, "/webhook/voice", url.Values{})

	body := rec.Body.String()
	assert.Contains(t, body, "<Say>")
	assert.Contains(t, body, "<Hangup")
	assert.Empty(t, fx.sessions.sessions)
}

func TestHandleGatherRunsTurnAndGathersAgain(t *testing.T) {
	fx := newServiceFixture()
	form := inboundForm("CA3")
	form.Set("SpeechResult", "My sink is clogged")

	rec := postForm(t, fx.service.HandleGather, gatherAction, form)

	assert.Equal(t, []string{"My sink is clogged"}, fx.turns.utterances)
	body := rec.Body.String()
	// the renderer XML-escapes apostrophes
	assert.Contains(t, body, "Sure, what&apos;s the address?")
	assert.Contains(t, body, "<Gather")
	assert.NotContains(t, body, "<Hangup")
	assert.Zero(t, fx.finalizer.count())
}

func TestHandleGatherSilenceRepromptsWithoutTurn(t *testing.T) {
	fx := newServiceFixture()

	rec := postForm(t, fx.service.HandleGather, gatherAction, inboundForm("CA4"))

	assert.Empty(t, fx.turns.utterances, "silence must not become a conversation turn")
	body := rec.Body.String()
	assert.Contains(t, body, "didn&apos;t catch that")
	assert.Contains(t, body, "<Gather")
}

func TestHandleGatherEndingTurnSaysReplyBeforeHangup(t *testing.T) {
	fx := newServiceFixture()
	fx.turns.result = engine.TurnResult{ReplyText: "Thanks for calling. Goodbye!", ShouldEndCall: true}
	form := inboundForm("CA5")
	form.Set("SpeechResult", "That's all, thanks")

	rec := postForm(t, fx.service.HandleGather, gatherAction, form)

	body := rec.Body.String()
	sayIdx := strings.Index(body, "<Say>")
	hangupIdx := strings.Index(body, "<Hangup")
	require.GreaterOrEqual(t, sayIdx, 0)
	require.GreaterOrEqual(t, hangupIdx, 0)
	assert.Less(t, sayIdx, hangupIdx, "caller hears the closing line before the hangup")
	assert.NotContains(t, body, "<Gather")

	req := fx.finalizer.wait(t)
	assert.Equal(t, "CA5", req.CallSid)
	assert.Equal(t, "agent-completed", req.CallStatus)
}

func TestHandleStatusNonTerminalIgnored(t *testing.T) {
	fx := newServiceFixture()
	form := inboundForm("CA6")
	form.Set("CallStatus", "ringing")

	rec := postForm(t, fx.service.HandleStatus, "/webhook/voice/status", form)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, fx.finalizer.count())
}

func TestHandleStatusTerminalFinalizesEveryDelivery(t *testing.T) {
	fx := newServiceFixture()
	form := inboundForm("CA7")
	form.Set("CallStatus", "completed")

	rec1 := postForm(t, fx.service.HandleStatus, "/webhook/voice/status", form)
	rec2 := postForm(t, fx.service.HandleStatus, "/webhook/voice/status", form)

	assert.Equal(t, http.StatusOK, rec1.Code)
	assert.Equal(t, http.StatusOK, rec2.Code)

	first := fx.finalizer.wait(t)
	second := fx.finalizer.wait(t)
	assert.Equal(t, "CA7", first.CallSid)
	assert.Equal(t, "completed", first.CallStatus)
	assert.Equal(t, "CA7", second.CallSid)
}

func TestHandleStatusMissingCallSidRejected(t *testing.T) {
	fx := newServiceFixture()

	rec := postForm(t, fx.service.HandleStatus, "/webhook/voice/status", url.Values{"CallStatus": {"completed"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fx.finalizer.count())
}
