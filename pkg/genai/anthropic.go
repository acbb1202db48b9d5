package genai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client for Anthropic Claude.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name.
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Generate maps the part-based contract onto the Messages API.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	messages := []anthropic.MessageParam{}

	for _, msg := range req.Contents {
		param, ok := toAnthropicMessage(msg)
		if !ok {
			continue
		}
		messages = append(messages, param)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemInstruction},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, t := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema["properties"],
				},
			}
			if required, ok := t.InputSchema["required"]; ok {
				if reqSlice, ok := required.([]interface{}); ok {
					strSlice := make([]string, len(reqSlice))
					for i, v := range reqSlice {
						strSlice[i], _ = v.(string)
					}
					toolParam.InputSchema.Required = strSlice
				}
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{}
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Parts = append(out.Parts, Part{Text: b.Text})
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			out.Parts = append(out.Parts, Part{
				FunctionCall: &FunctionCall{
					ID:   b.ID,
					Name: b.Name,
					Args: args,
				},
			})
		}
	}

	out.Usage = &TokenUsage{
		InputTokens:  int(response.Usage.InputTokens),
		OutputTokens: int(response.Usage.OutputTokens),
	}

	return out, nil
}

// Embed is not available through the Anthropic API.
func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("provider anthropic does not support embeddings")
}

func toAnthropicMessage(msg Message) (anthropic.MessageParam, bool) {
	blocks := []anthropic.ContentBlockParamUnion{}

	for _, p := range msg.Parts {
		switch {
		case p.FunctionResponse != nil:
			payload, err := json.Marshal(p.FunctionResponse.Response)
			if err != nil {
				payload = []byte(fmt.Sprintf("%v", p.FunctionResponse.Response))
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(p.FunctionResponse.ID, string(payload), false))
		case p.FunctionCall != nil:
			blocks = append(blocks, anthropic.NewToolUseBlock(p.FunctionCall.ID, p.FunctionCall.Args, p.FunctionCall.Name))
		case p.Thought:
			// dropped
		case p.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}

	if len(blocks) == 0 {
		return anthropic.MessageParam{}, false
	}

	role := anthropic.MessageParamRoleUser
	if msg.Role == "model" {
		role = anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParam{Role: role, Content: blocks}, true
}
