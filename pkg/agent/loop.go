// Package agent implements the tool-orchestration loop: call the model with
// the conversation and the declared tool set, execute at most one requested
// tool per turn, feed the result back, and stop on a plain-text answer, an
// explicit finalize call, or an exhausted turn/time budget.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hoangnp/careerpilot/internal/observability"
	"github.com/hoangnp/careerpilot/internal/tracing"
	"github.com/hoangnp/careerpilot/pkg/genai"
	"github.com/hoangnp/careerpilot/pkg/session"
	"github.com/hoangnp/careerpilot/pkg/tools"
)

const (
	// DefaultMaxTurns bounds the number of model calls per run.
	DefaultMaxTurns = 10
	// DefaultTimeBudget bounds the wall-clock time per run.
	DefaultTimeBudget = 2 * time.Minute

	// emptyFinalResponse stands in for the assistant answer when a run ends
	// without any text, so the session log still closes with an assistant
	// message.
	emptyFinalResponse = "I was unable to produce a response for this request."
)

// Instructions supplies the system instruction for generation requests.
type Instructions interface {
	Full() string
}

// Outcome is the terminal result of one run.
type Outcome struct {
	Steps           []ProcessStep
	FinalResponse   string
	FinalizePayload string
	Finalized       bool
	Exhausted       bool
	Turns           int
	StartTime       time.Time
	EndTime         time.Time
}

// Controller drives the loop. One Run call handles one conversation turn
// end to end; runs against the same session must not overlap.
type Controller struct {
	client       genai.Client
	registry     *tools.Registry
	store        *session.Store
	instructions Instructions
	model        string
	maxTurns     int
	timeBudget   time.Duration
	temperature  float64
	maxTokens    int
	logger       zerolog.Logger
}

// Config holds controller configuration.
type Config struct {
	Client       genai.Client
	Registry     *tools.Registry
	Store        *session.Store
	Instructions Instructions
	Model        string
	MaxTurns     int
	TimeBudget   time.Duration
	Temperature  float64
	MaxTokens    int
	Logger       zerolog.Logger
}

// NewController creates a loop controller.
func NewController(cfg Config) (*Controller, error) {
	observability.EnsureRegistered()

	if cfg.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = DefaultTimeBudget
	}

	return &Controller{
		client:       cfg.Client,
		registry:     cfg.Registry,
		store:        cfg.Store,
		instructions: cfg.Instructions,
		model:        cfg.Model,
		maxTurns:     cfg.MaxTurns,
		timeBudget:   cfg.TimeBudget,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		logger:       cfg.Logger,
	}, nil
}

// Run processes one user query against an existing session. On an invoker
// failure the returned outcome carries the transcript so far alongside the
// error; every other path terminates cleanly with an outcome.
func (c *Controller) Run(ctx context.Context, sessionID, query string) (*Outcome, error) {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"careerpilot.agent",
		"agent.loop",
		attribute.String("session_id", sessionID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx)

	outcome := &Outcome{StartTime: time.Now().UTC()}
	defer func() { outcome.EndTime = time.Now().UTC() }()

	contents, err := c.buildContext(sessionID, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome.Steps = append(outcome.Steps, errorStep(err))
		return outcome, err
	}

	decls := c.registry.Declarations()
	systemInstruction := ""
	if c.instructions != nil {
		systemInstruction = c.instructions.Full()
	}

	deadline := outcome.StartTime.Add(c.timeBudget)
	lastText := ""

	for turn := 1; turn <= c.maxTurns; turn++ {
		if time.Now().After(deadline) {
			logger.Warn().Int("turn", turn).Msg("Time budget exhausted")
			break
		}

		outcome.Turns = turn

		resp, err := c.client.Generate(ctx, genai.GenerateRequest{
			Model:             c.model,
			Contents:          contents,
			Tools:             decls,
			Mode:              "auto",
			SystemInstruction: systemInstruction,
			Temperature:       c.temperature,
			MaxTokens:         c.maxTokens,
		})
		if err != nil {
			// Invoker failure after rotation exhaustion aborts the run.
			logger.Error().Int("turn", turn).Err(err).Msg("Generation failed, aborting run")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.RecordLoopOutcome("error")
			outcome.Steps = append(outcome.Steps, errorStep(err))
			return outcome, err
		}

		turnText, call := c.observeParts(resp, outcome)

		if call == nil {
			// Termination (a): no function call, the text is the answer.
			final := turnText
			if final == "" {
				final = lastText
			}
			return c.finish(outcome, sessionID, final, "final_response", logger)
		}

		if turnText != "" {
			outcome.Steps = append(outcome.Steps, responseStep(turnText))
			lastText = turnText
		}

		if call.ID == "" {
			if id, err := gonanoid.New(); err == nil {
				call.ID = id
			}
		}

		outcome.Steps = append(outcome.Steps, toolCallStep(call.Name, call.Args))

		if call.Name == tools.FinalizeToolName {
			// Termination (b): executed locally, nothing goes back to the
			// model; the payload is the authoritative terminal body.
			result := c.registry.Dispatch(ctx, call.Name, call.Args)
			outcome.Steps = append(outcome.Steps, toolResultStep(result))

			payload, _ := result.Output.(string)
			outcome.Finalized = true
			outcome.FinalizePayload = payload

			return c.finish(outcome, sessionID, payload, "finalized", logger)
		}

		result := c.registry.Dispatch(ctx, call.Name, call.Args)
		outcome.Steps = append(outcome.Steps, toolResultStep(result))

		logger.Debug().
			Int("turn", turn).
			Str("tool", call.Name).
			Bool("success", result.Success).
			Msg("Tool executed")

		// The model sees its own call and the observation on the next turn.
		contents = append(contents,
			genai.Message{Role: "model", Parts: []genai.Part{{FunctionCall: call}}},
			genai.Message{Role: "user", Parts: []genai.Part{{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result.AsResponse(),
			}}}},
		)
	}

	// Turn or time budget exhausted: fall back to the last text seen.
	outcome.Exhausted = true
	return c.finish(outcome, sessionID, lastText, "budget_exhausted", logger)
}

// buildContext assembles the model-visible conversation: prior user and
// assistant messages, then the current query suffixed with context hints.
func (c *Controller) buildContext(sessionID, query string) ([]genai.Message, error) {
	doc, err := c.store.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var contents []genai.Message
	metadataKeys := map[string]bool{}

	for _, msg := range doc.Messages {
		var role string
		switch msg.Role {
		case "user":
			role = "user"
		case "assistant", "model":
			role = "model"
		default:
			continue
		}
		if msg.Content == "" {
			continue
		}
		contents = append(contents, genai.Message{
			Role:  role,
			Parts: []genai.Part{{Text: msg.Content}},
		})
		for k := range msg.Metadata {
			metadataKeys[k] = true
		}
	}

	// When the caller already persisted the current query as the trailing
	// user message, annotate it in place instead of repeating it.
	if n := len(contents); n > 0 && contents[n-1].Role == "user" && contents[n-1].Parts[0].Text == query {
		contents[n-1].Parts[0].Text = query + contextHints(len(doc.Messages)-1, metadataKeys)
		return contents, nil
	}

	contents = append(contents, genai.Message{
		Role:  "user",
		Parts: []genai.Part{{Text: query + contextHints(len(doc.Messages), metadataKeys)}},
	})

	return contents, nil
}

// contextHints annotates the current turn with what history exists, without
// forcing the model to use it.
func contextHints(priorCount int, metadataKeys map[string]bool) string {
	if priorCount == 0 {
		return ""
	}

	hint := fmt.Sprintf("\n\n[Context: %d prior messages available in this session", priorCount)
	if len(metadataKeys) > 0 {
		keys := make([]string, 0, len(metadataKeys))
		for k := range metadataKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		hint += "; metadata keys: " + strings.Join(keys, ", ")
	}
	return hint + "]"
}

// observeParts walks the response parts in order, recording thoughts and
// returning the gathered plain text plus the first function call, if any.
// Extra function calls in the same turn are dropped.
func (c *Controller) observeParts(resp *genai.GenerateResponse, outcome *Outcome) (string, *genai.FunctionCall) {
	text := ""
	var call *genai.FunctionCall

	for _, part := range resp.Parts {
		switch {
		case part.Thought:
			outcome.Steps = append(outcome.Steps, thoughtStep(part.Text))
		case part.FunctionCall != nil:
			if call == nil {
				call = part.FunctionCall
			} else {
				c.logger.Warn().
					Str("tool", part.FunctionCall.Name).
					Msg("Ignoring extra function call in the same turn")
			}
		case part.Text != "":
			text += part.Text
		}
	}

	return text, call
}

// finish records the terminal step, persists the assistant answer, and
// closes out the outcome.
func (c *Controller) finish(outcome *Outcome, sessionID, final, metricOutcome string, logger zerolog.Logger) (*Outcome, error) {
	if final == "" {
		final = emptyFinalResponse
	}
	outcome.FinalResponse = final
	outcome.Steps = append(outcome.Steps, finalResponseStep(final))
	observability.RecordLoopOutcome(metricOutcome)

	err := c.store.Append(sessionID, "assistant", final, map[string]interface{}{
		"turns":     outcome.Turns,
		"finalized": outcome.Finalized,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist final response")
	}

	logger.Info().
		Int("turns", outcome.Turns).
		Bool("finalized", outcome.Finalized).
		Bool("exhausted", outcome.Exhausted).
		Msg("Run completed")

	return outcome, nil
}
