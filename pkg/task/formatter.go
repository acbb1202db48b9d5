package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hoangnp/careerpilot/internal/observability"
	"github.com/hoangnp/careerpilot/internal/tracing"
	"github.com/hoangnp/careerpilot/pkg/agent"
	"github.com/hoangnp/careerpilot/pkg/session"
)

// Runner drives one conversation turn. Satisfied by the agent controller.
type Runner interface {
	Run(ctx context.Context, sessionID, query string) (*agent.Outcome, error)
}

// Formatter is the external entry point for task processing.
type Formatter struct {
	runner Runner
	store  *session.Store
	logger zerolog.Logger
}

// Config holds formatter configuration.
type Config struct {
	Runner Runner
	Store  *session.Store
	Logger zerolog.Logger
}

// NewFormatter creates a task formatter.
func NewFormatter(cfg Config) (*Formatter, error) {
	observability.EnsureRegistered()

	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	return &Formatter{
		runner: cfg.Runner,
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// Process handles one task end to end and always returns a JSON-serializable
// response document, never an error: every failure mode is rendered as a
// failed envelope. The result is either *Response or *LegacyResponse.
func (f *Formatter) Process(ctx context.Context, raw map[string]interface{}) (result interface{}) {
	start := time.Now().UTC()
	ctx = tracing.WithTaskID(ctx, tracing.NewTaskID())
	ctx, span := tracing.StartSpan(ctx, "careerpilot.task", "task.process")
	defer span.End()

	logger := tracing.LoggerFromContext(ctx)

	status := StatusFailed
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Task processing panicked")
			result = f.failure(ErrTypeSystem, fmt.Sprintf("internal error: %v", rec), "", start)
			status = StatusFailed
		}
		observability.RecordTask(string(status), time.Since(start))
	}()

	if violations := Validate(raw); len(violations) > 0 {
		logger.Warn().Strs("violations", violations).Msg("Task rejected")
		resp := f.failure(ErrTypeValidation, "task validation failed", "", start)
		resp.Data["violations"] = violations
		return resp
	}

	env := Decode(raw)

	sessionID, err := f.resolveSession(env)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", env.SessionID).Msg("Session resolution failed")
		return f.failure(ErrTypeSession, err.Error(), env.SessionID, start)
	}
	span.SetAttributes(attribute.String("session_id", sessionID))

	f.persistInput(sessionID, env, logger)

	query := ExtractUserQuery(env.Message)
	if strings.TrimSpace(query) == "" {
		logger.Warn().Str("session_id", sessionID).Msg("Task carried no user query")
		status = StatusInputRequired
		return &Response{
			Status: StatusInputRequired,
			Data: map[string]interface{}{
				"message": ErrEmptyQuery.Error() + "; please provide a question",
			},
			Metadata: f.metadata(sessionID, nil, start),
		}
	}

	outcome, err := f.runner.Run(ctx, sessionID, query)
	if err != nil {
		logger.Error().Err(err).Msg("Run failed")
		resp := f.failure(ErrTypeSystem, err.Error(), sessionID, start)
		if outcome != nil {
			resp.Metadata.ProcessSequence = traceFromSteps(outcome.Steps)
		}
		return resp
	}

	if outcome.Finalized {
		resp := f.unified(sessionID, outcome, start)
		status = resp.Status
		return resp
	}

	// Free-text termination keeps the legacy shape.
	status = StatusCompleted
	state := "completed"
	if outcome.Exhausted {
		state = "max_turns_exceeded"
	}
	return &LegacyResponse{
		StartTime:       outcome.StartTime,
		EndTime:         outcome.EndTime,
		SessionID:       sessionID,
		State:           state,
		ProcessSequence: outcome.Steps,
		FinalResponse:   outcome.FinalResponse,
		Metadata:        env.Metadata,
	}
}

// resolveSession reuses a caller-supplied session or creates a fresh one.
// A supplied id that does not exist is an error; sessions are never created
// implicitly on the caller's behalf.
func (f *Formatter) resolveSession(env *Envelope) (string, error) {
	if env.SessionID != "" {
		if !f.store.Exists(env.SessionID) {
			return "", fmt.Errorf("session not found: %s", env.SessionID)
		}
		return env.SessionID, nil
	}
	return f.store.Create("")
}

// persistInput appends the supplied messages to the session log. The task
// metadata rides on the last message.
func (f *Formatter) persistInput(sessionID string, env *Envelope, logger zerolog.Logger) {
	for i, msg := range env.Message {
		var meta map[string]interface{}
		if i == len(env.Message)-1 {
			meta = env.Metadata
		}
		if err := f.store.Append(sessionID, msg.Role, msg.Content, meta); err != nil {
			logger.Error().Err(err).Msg("Failed to persist input message")
		}
	}
}

// unified renders the finalize payload into the unified envelope. A payload
// that is not the expected JSON document still completes, carried verbatim
// under data.response.
func (f *Formatter) unified(sessionID string, outcome *agent.Outcome, start time.Time) *Response {
	resp := &Response{
		Status:   StatusCompleted,
		Data:     map[string]interface{}{},
		Metadata: f.metadata(sessionID, outcome, start),
	}

	var payload struct {
		Status   Status                 `json:"status"`
		Data     map[string]interface{} `json:"data"`
		Analysis *Analysis              `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(outcome.FinalizePayload), &payload); err != nil || payload.Status == "" {
		resp.Data["response"] = outcome.FinalizePayload
		return resp
	}

	switch payload.Status {
	case StatusCompleted, StatusFailed, StatusInputRequired:
		resp.Status = payload.Status
	}
	if payload.Data != nil {
		resp.Data = payload.Data
	}
	resp.Analysis = payload.Analysis

	return resp
}

func (f *Formatter) failure(errType, message, sessionID string, start time.Time) *Response {
	return &Response{
		Status: StatusFailed,
		Data: map[string]interface{}{
			"error_type": errType,
			"error":      message,
		},
		Metadata: f.metadata(sessionID, nil, start),
	}
}

func (f *Formatter) metadata(sessionID string, outcome *agent.Outcome, start time.Time) Metadata {
	meta := Metadata{
		SessionID:       sessionID,
		ProcessSequence: []TraceEntry{},
		Timestamp:       time.Now().UTC(),
		ProcessingTime:  time.Since(start).Seconds(),
	}
	if outcome != nil {
		meta.ProcessSequence = traceFromSteps(outcome.Steps)
	}
	return meta
}
