package agent

import (
	"time"

	"github.com/hoangnp/careerpilot/pkg/tools"
)

// StepType tags one entry of the run transcript.
type StepType string

const (
	StepThought       StepType = "thought"
	StepToolCall      StepType = "tool_call"
	StepToolResult    StepType = "tool_result"
	StepResponse      StepType = "response"
	StepFinalResponse StepType = "final_response"
	StepError         StepType = "error"
)

// ProcessStep is one chronological entry in a run transcript. Which fields
// are set depends on Type: thought/response/final_response/error carry
// Content, tool_call carries ToolName+Args, tool_result carries Result.
type ProcessStep struct {
	Type      StepType               `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Content   string                 `json:"content,omitempty"`
	ToolName  string                 `json:"tool_name,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Result    *tools.Result          `json:"result,omitempty"`
}

func thoughtStep(text string) ProcessStep {
	return ProcessStep{Type: StepThought, Timestamp: time.Now().UTC(), Content: text}
}

func toolCallStep(name string, args map[string]interface{}) ProcessStep {
	return ProcessStep{Type: StepToolCall, Timestamp: time.Now().UTC(), ToolName: name, Args: args}
}

func toolResultStep(result tools.Result) ProcessStep {
	return ProcessStep{Type: StepToolResult, Timestamp: time.Now().UTC(), ToolName: result.ToolName, Result: &result}
}

func responseStep(text string) ProcessStep {
	return ProcessStep{Type: StepResponse, Timestamp: time.Now().UTC(), Content: text}
}

func finalResponseStep(text string) ProcessStep {
	return ProcessStep{Type: StepFinalResponse, Timestamp: time.Now().UTC(), Content: text}
}

func errorStep(err error) ProcessStep {
	return ProcessStep{Type: StepError, Timestamp: time.Now().UTC(), Content: err.Error()}
}
