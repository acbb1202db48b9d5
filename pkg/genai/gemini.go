package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	geminiBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultEmbeddingModel = "gemini-embedding-001"
)

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	http           *resty.Client
	apiKey         string
	embeddingModel string
}

// NewGeminiClient creates a Gemini client for the given API key.
func NewGeminiClient(apiKey, embeddingModel string) *GeminiClient {
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	client := resty.New()
	client.SetBaseURL(geminiBaseURL)
	client.SetTimeout(120 * time.Second)

	return &GeminiClient{
		http:           client,
		apiKey:         apiKey,
		embeddingModel: embeddingModel,
	}
}

// Provider returns the provider name.
func (c *GeminiClient) Provider() string {
	return "gemini"
}

// Wire types for the generateContent endpoint.

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	Thought          bool            `json:"thought,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type geminiFuncResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent    `json:"contents"`
	Tools             []geminiTool       `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig  `json:"toolConfig,omitempty"`
	SystemInstruction *geminiContent     `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig   `json:"generationConfig,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiToolConfig struct {
	FunctionCallingConfig geminiFuncCallingConfig `json:"functionCallingConfig"`
}

type geminiFuncCallingConfig struct {
	Mode string `json:"mode"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate calls models/{model}:generateContent and maps the candidate parts
// back into the neutral contract.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body := geminiGenerateRequest{
		Contents: toGeminiContents(req.Contents),
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		body.Tools = []geminiTool{{FunctionDeclarations: decls}}

		mode := req.Mode
		if mode == "" {
			mode = "auto"
		}
		body.ToolConfig = &geminiToolConfig{
			FunctionCallingConfig: geminiFuncCallingConfig{Mode: geminiMode(mode)},
		}
	}

	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("/models/%s:generateContent", req.Model))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gemini API error %d: %s", resp.StatusCode(), resp.String())
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	out := &GenerateResponse{}
	for _, p := range parsed.Candidates[0].Content.Parts {
		part := Part{Text: p.Text, Thought: p.Thought}
		if p.FunctionCall != nil {
			part.FunctionCall = &FunctionCall{
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			}
		}
		out.Parts = append(out.Parts, part)
	}
	if parsed.UsageMetadata != nil {
		out.Usage = &TokenUsage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		}
	}

	return out, nil
}

// Embed calls models/{embeddingModel}:embedContent.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body := map[string]interface{}{
		"content": map[string]interface{}{
			"parts": []map[string]string{{"text": text}},
		},
		"taskType": "SEMANTIC_SIMILARITY",
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("/models/%s:embedContent", c.embeddingModel))
	if err != nil {
		return nil, fmt.Errorf("gemini embed request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gemini API error %d: %s", resp.StatusCode(), resp.String())
	}

	var parsed struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	return parsed.Embedding.Values, nil
}

func toGeminiContents(messages []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		gc := geminiContent{Role: msg.Role}
		for _, p := range msg.Parts {
			gp := geminiPart{Text: p.Text, Thought: p.Thought}
			if p.FunctionCall != nil {
				gp.FunctionCall = &geminiFuncCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}
			}
			if p.FunctionResponse != nil {
				gp.FunctionResponse = &geminiFuncResp{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}
			}
			gc.Parts = append(gc.Parts, gp)
		}
		contents = append(contents, gc)
	}
	return contents
}

func geminiMode(mode string) string {
	switch mode {
	case "auto":
		return "AUTO"
	case "any":
		return "ANY"
	case "none":
		return "NONE"
	default:
		return "AUTO"
	}
}
