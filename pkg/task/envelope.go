// Package task implements the agent-to-agent boundary: it validates an
// incoming task envelope, drives the loop controller, and renders a
// standardized response envelope for the caller.
package task

import (
	"errors"
	"time"

	"github.com/hoangnp/careerpilot/pkg/agent"
)

// ErrEmptyQuery is reported when the task input contains no usable user
// query; it surfaces as an input_required envelope, never as a raw error.
var ErrEmptyQuery = errors.New("no user query found in task input")

// Status enumerates the terminal states of a processed task.
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusInputRequired Status = "input_required"
)

// Error types reported inside a failed response's data block.
const (
	ErrTypeValidation = "VALIDATION_ERROR"
	ErrTypeSession    = "SESSION_ERROR"
	ErrTypeSystem     = "SYSTEM_ERROR"
)

// InputMessage is one entry of the caller-supplied conversation.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Envelope is the decoded task input.
type Envelope struct {
	SessionID string
	Message   []InputMessage
	Metadata  map[string]interface{}
}

// Analysis is the model's self-assessment attached to a completed response.
type Analysis struct {
	Reasoning       string   `json:"reasoning"`
	ConfidenceScore float64  `json:"confidence_score"`
	CriteriaUsed    []string `json:"criteria_used"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	MarketContext   string   `json:"market_context"`
}

// TraceEntry is one simplified process-sequence item. Tool outputs are
// omitted to keep the trace compact.
type TraceEntry struct {
	Tool      string                 `json:"tool"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Metadata is the envelope-level metadata of a unified response.
type Metadata struct {
	SessionID       string       `json:"sessionId"`
	ProcessSequence []TraceEntry `json:"process_sequence"`
	Timestamp       time.Time    `json:"timestamp"`
	ProcessingTime  float64      `json:"processing_time"`
}

// Response is the unified task output.
type Response struct {
	Status   Status                 `json:"status"`
	Data     map[string]interface{} `json:"data"`
	Analysis *Analysis              `json:"analysis,omitempty"`
	Metadata Metadata               `json:"_metadata"`
}

// LegacyResponse is the fallback output shape, used when the run terminated
// on free text without an explicit finalize signal.
type LegacyResponse struct {
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time"`
	SessionID       string                 `json:"sessionId"`
	State           string                 `json:"state"`
	ProcessSequence []agent.ProcessStep    `json:"process_sequence"`
	FinalResponse   string                 `json:"final_response"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// traceFromSteps reduces a run transcript to the tool calls it contains.
func traceFromSteps(steps []agent.ProcessStep) []TraceEntry {
	trace := make([]TraceEntry, 0)
	for _, step := range steps {
		if step.Type != agent.StepToolCall {
			continue
		}
		trace = append(trace, TraceEntry{
			Tool:      step.ToolName,
			Args:      step.Args,
			Timestamp: step.Timestamp,
		})
	}
	return trace
}
