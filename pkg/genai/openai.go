package genai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client for OpenAI chat completions.
type OpenAIClient struct {
	client         openai.Client
	embeddingModel string
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey, embeddingModel string) *OpenAIClient {
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return &OpenAIClient{
		client:         openai.NewClient(option.WithAPIKey(apiKey)),
		embeddingModel: embeddingModel,
	}
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string {
	return "openai"
}

// Generate maps the part-based contract onto the chat completions API.
// Thought parts never cross this boundary; OpenAI has no equivalent.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}

	for _, msg := range req.Contents {
		converted, err := toOpenAIMessages(msg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, converted...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, t := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.InputSchema),
				},
			})
		}
		params.Tools = tools
	}

	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]
	out := &GenerateResponse{}

	if choice.Message.Content != "" {
		out.Parts = append(out.Parts, Part{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
		out.Parts = append(out.Parts, Part{
			FunctionCall: &FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	out.Usage = &TokenUsage{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
	}

	return out, nil
}

// Embed calls the embeddings API.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func toOpenAIMessages(msg Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}

	text := ""
	toolCalls := []openai.ChatCompletionMessageToolCall{}

	for _, p := range msg.Parts {
		switch {
		case p.FunctionResponse != nil:
			payload, err := json.Marshal(p.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool response: %w", err)
			}
			out = append(out, openai.ToolMessage(p.FunctionResponse.ID, string(payload)))
		case p.FunctionCall != nil:
			argsJSON, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
				ID:   p.FunctionCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      p.FunctionCall.Name,
					Arguments: string(argsJSON),
				},
			})
		case p.Thought:
			// dropped
		case p.Text != "":
			text += p.Text
		}
	}

	switch {
	case len(toolCalls) > 0:
		assistantMsg := openai.ChatCompletionMessage{
			Role:      "assistant",
			Content:   text,
			ToolCalls: toolCalls,
		}
		out = append(out, assistantMsg.ToParam())
	case text != "" && msg.Role == "model":
		out = append(out, openai.AssistantMessage(text))
	case text != "":
		out = append(out, openai.UserMessage(text))
	}

	return out, nil
}
