// Package genai defines the generative-model contract used by the agent
// loop: part-based messages, tool declarations, provider clients, and the
// rotating invoker that survives transient API failures by cycling through
// the credential pool.
package genai

// Message is one model-visible conversation entry.
type Message struct {
	Role  string `json:"role"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is a tagged fragment of a model turn. Exactly one of Text,
// FunctionCall, or FunctionResponse is meaningful; Thought marks a Text part
// as internal reasoning.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// FunctionCall is a model request to invoke a declared tool.
type FunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// ToolDeclaration describes one tool to the model.
type ToolDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	Model             string
	Contents          []Message
	Tools             []ToolDeclaration
	Mode              string // function-calling mode, "auto" by default
	SystemInstruction string
	Temperature       float64
	MaxTokens         int
}

// GenerateResponse is the parsed model output, parts in emission order.
type GenerateResponse struct {
	Parts []Part
	Usage *TokenUsage
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TextParts concatenates all non-thought text parts.
func (r *GenerateResponse) TextParts() string {
	out := ""
	for _, p := range r.Parts {
		if p.Text != "" && !p.Thought && p.FunctionCall == nil {
			out += p.Text
		}
	}
	return out
}

// FirstFunctionCall returns the first function call part, or nil.
func (r *GenerateResponse) FirstFunctionCall() *FunctionCall {
	for _, p := range r.Parts {
		if p.FunctionCall != nil {
			return p.FunctionCall
		}
	}
	return nil
}
