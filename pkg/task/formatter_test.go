package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangnp/careerpilot/pkg/agent"
	"github.com/hoangnp/careerpilot/pkg/session"
)

// fakeRunner returns a canned outcome and records what it was asked.
type fakeRunner struct {
	outcome   *agent.Outcome
	err       error
	panicWith interface{}
	sessionID string
	query     string
}

func (r *fakeRunner) Run(_ context.Context, sessionID, query string) (*agent.Outcome, error) {
	r.sessionID = sessionID
	r.query = query
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	return r.outcome, r.err
}

func newTestFormatter(t *testing.T, runner Runner) (*Formatter, *session.Store) {
	t.Helper()

	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	f, err := NewFormatter(Config{Runner: runner, Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return f, store
}

func userTask(content string) map[string]interface{} {
	return map[string]interface{}{
		"message": []interface{}{
			map[string]interface{}{"role": "user", "content": content},
		},
	}
}

func finalizedOutcome(payload string) *agent.Outcome {
	now := time.Now().UTC()
	return &agent.Outcome{
		Finalized:       true,
		FinalizePayload: payload,
		FinalResponse:   payload,
		Turns:           2,
		StartTime:       now.Add(-time.Second),
		EndTime:         now,
	}
}

func TestProcessValidationError(t *testing.T) {
	f, _ := newTestFormatter(t, &fakeRunner{})

	result := f.Process(context.Background(), map[string]interface{}{"message": "bad"})

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, ErrTypeValidation, resp.Data["error_type"])
	assert.NotEmpty(t, resp.Data["violations"])
}

func TestProcessUnknownSession(t *testing.T) {
	runner := &fakeRunner{}
	f, _ := newTestFormatter(t, runner)

	raw := userTask("hello")
	raw["sessionId"] = "session_19990101_000000"

	result := f.Process(context.Background(), raw)

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, ErrTypeSession, resp.Data["error_type"])
	assert.Empty(t, runner.sessionID, "runner must not be invoked")
}

func TestProcessEmptyQuery(t *testing.T) {
	f, store := newTestFormatter(t, &fakeRunner{})

	result := f.Process(context.Background(), map[string]interface{}{
		"message": []interface{}{
			map[string]interface{}{"role": "user", "content": "   "},
		},
	})

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusInputRequired, resp.Status)

	// The fresh session was still created and holds the input.
	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].MessageCount)
}

func TestProcessFinalizedUnifiedEnvelope(t *testing.T) {
	payload := `{
		"status": "completed",
		"data": {"skills": ["Go", "SQL", "Kubernetes"]},
		"analysis": {
			"reasoning": "based on posting frequency",
			"confidence_score": 0.85,
			"criteria_used": ["posting_count"],
			"strengths": ["large sample"],
			"weaknesses": ["single region"],
			"market_context": "2026 hiring data"
		}
	}`
	outcome := finalizedOutcome(payload)
	outcome.Steps = []agent.ProcessStep{
		{Type: agent.StepToolCall, ToolName: "query_database", Args: map[string]interface{}{"sql": "SELECT 1"}, Timestamp: time.Now().UTC()},
		{Type: agent.StepToolResult, ToolName: "query_database", Timestamp: time.Now().UTC()},
		{Type: agent.StepToolCall, ToolName: "respond_to_agent", Timestamp: time.Now().UTC()},
	}
	runner := &fakeRunner{outcome: outcome}
	f, store := newTestFormatter(t, runner)

	result := f.Process(context.Background(), userTask("What are the top 3 skills?"))

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, []interface{}{"Go", "SQL", "Kubernetes"}, resp.Data["skills"])
	require.NotNil(t, resp.Analysis)
	assert.InDelta(t, 0.85, resp.Analysis.ConfidenceScore, 1e-9)

	// Simplified trace: tool calls only, no results.
	require.Len(t, resp.Metadata.ProcessSequence, 2)
	assert.Equal(t, "query_database", resp.Metadata.ProcessSequence[0].Tool)
	assert.Equal(t, "respond_to_agent", resp.Metadata.ProcessSequence[1].Tool)
	assert.NotEmpty(t, resp.Metadata.SessionID)
	assert.GreaterOrEqual(t, resp.Metadata.ProcessingTime, 0.0)

	// The runner saw the created session and the extracted query.
	assert.Equal(t, resp.Metadata.SessionID, runner.sessionID)
	assert.Equal(t, "What are the top 3 skills?", runner.query)

	// The input message was persisted before the run.
	doc, err := store.Load(resp.Metadata.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Messages)
	assert.Equal(t, "user", doc.Messages[0].Role)
	assert.Equal(t, "What are the top 3 skills?", doc.Messages[0].Content)
}

func TestProcessFinalizedUnparseablePayload(t *testing.T) {
	runner := &fakeRunner{outcome: finalizedOutcome("Here are the skills: Go, SQL.")}
	f, _ := newTestFormatter(t, runner)

	result := f.Process(context.Background(), userTask("skills?"))

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "Here are the skills: Go, SQL.", resp.Data["response"])
	assert.Nil(t, resp.Analysis)
}

func TestProcessFreeTextLegacyEnvelope(t *testing.T) {
	now := time.Now().UTC()
	runner := &fakeRunner{outcome: &agent.Outcome{
		FinalResponse: "Go developers are in demand.",
		Turns:         1,
		StartTime:     now.Add(-time.Second),
		EndTime:       now,
		Steps: []agent.ProcessStep{
			{Type: agent.StepFinalResponse, Content: "Go developers are in demand.", Timestamp: now},
		},
	}}
	f, _ := newTestFormatter(t, runner)

	raw := userTask("How is the market?")
	raw["metadata"] = map[string]interface{}{"source": "test"}

	result := f.Process(context.Background(), raw)

	legacy, ok := result.(*LegacyResponse)
	require.True(t, ok)
	assert.Equal(t, "completed", legacy.State)
	assert.Equal(t, "Go developers are in demand.", legacy.FinalResponse)
	assert.Len(t, legacy.ProcessSequence, 1)
	assert.Equal(t, map[string]interface{}{"source": "test"}, legacy.Metadata)
	assert.NotEmpty(t, legacy.SessionID)
}

func TestProcessExhaustedState(t *testing.T) {
	runner := &fakeRunner{outcome: &agent.Outcome{
		FinalResponse: "partial answer",
		Exhausted:     true,
		Turns:         10,
	}}
	f, _ := newTestFormatter(t, runner)

	result := f.Process(context.Background(), userTask("hard question"))

	legacy, ok := result.(*LegacyResponse)
	require.True(t, ok)
	assert.Equal(t, "max_turns_exceeded", legacy.State)
}

func TestProcessRunnerError(t *testing.T) {
	runner := &fakeRunner{
		outcome: &agent.Outcome{Steps: []agent.ProcessStep{
			{Type: agent.StepToolCall, ToolName: "lookup", Timestamp: time.Now().UTC()},
			{Type: agent.StepError, Content: "max attempts (3) exceeded", Timestamp: time.Now().UTC()},
		}},
		err: errors.New("max attempts (3) exceeded: rate limit"),
	}
	f, _ := newTestFormatter(t, runner)

	result := f.Process(context.Background(), userTask("hello"))

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, ErrTypeSystem, resp.Data["error_type"])
	assert.Contains(t, resp.Data["error"], "rate limit")
	assert.Len(t, resp.Metadata.ProcessSequence, 1)
}

func TestProcessPanicBecomesSystemError(t *testing.T) {
	runner := &fakeRunner{panicWith: "boom"}
	f, _ := newTestFormatter(t, runner)

	result := f.Process(context.Background(), userTask("hello"))

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, ErrTypeSystem, resp.Data["error_type"])
	assert.Contains(t, resp.Data["error"], "boom")
}

func TestProcessExistingSessionReused(t *testing.T) {
	runner := &fakeRunner{outcome: finalizedOutcome(`{"status":"completed","data":{}}`)}
	f, store := newTestFormatter(t, runner)

	id, err := store.Create("")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, "user", "earlier question", nil))

	raw := userTask("follow-up")
	raw["sessionId"] = id

	result := f.Process(context.Background(), raw)

	resp, ok := result.(*Response)
	require.True(t, ok)
	assert.Equal(t, id, resp.Metadata.SessionID)
	assert.Equal(t, id, runner.sessionID)

	doc, err := store.Load(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(doc.Messages), 2)
}
