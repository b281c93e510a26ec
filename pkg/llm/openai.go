package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	openaiDefaultBaseURL   = "https://api.openai.com"
	deepseekDefaultBaseURL = "https://api.deepseek.com"
)

// OpenAICompatProvider adapts any OpenAI-compatible chat completions API.
// DeepSeek exposes the same wire format, so both vendors share this adapter
// with different names and endpoints.
type OpenAICompatProvider struct {
	enabledFlag
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates an adapter for the OpenAI API.
func NewOpenAIProvider(apiKey string, opts ...ProviderOption) *OpenAICompatProvider {
	return newOpenAICompat("openai", apiKey, openaiDefaultBaseURL, opts)
}

// NewDeepSeekProvider creates an adapter for the DeepSeek API.
func NewDeepSeekProvider(apiKey string, opts ...ProviderOption) *OpenAICompatProvider {
	return newOpenAICompat("deepseek", apiKey, deepseekDefaultBaseURL, opts)
}

func newOpenAICompat(name, apiKey, baseURL string, opts []ProviderOption) *OpenAICompatProvider {
	p := &OpenAICompatProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	applyOptions(&p.baseURL, &p.client, opts)
	return p
}

func (p *OpenAICompatProvider) Name() string { return p.name }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a free-form text request.
func (p *OpenAICompatProvider) Complete(ctx context.Context, modelID string, req Request) (*Response, error) {
	return p.send(ctx, modelID, req, nil)
}

// CompleteStructured uses the native JSON response format, then validates the
// payload against out. The JSON mode requires the word "json" in the prompt,
// which the injected system contract guarantees.
func (p *OpenAICompatProvider) CompleteStructured(ctx context.Context, modelID string, req Request, out any) (*Response, error) {
	structured := req
	structured.SystemPrompt = structuredSystemPrompt(req.SystemPrompt, out)

	resp, err := p.send(ctx, modelID, structured, &openaiResponseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	if err := decodeStructured(resp.Content, out); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *OpenAICompatProvider) send(ctx context.Context, modelID string, req Request, format *openaiResponseFormat) (*Response, error) {
	messages := []openaiMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	body := openaiRequest{
		Model:          modelID,
		Messages:       messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: format,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.baseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	defer httpResp.Body.Close()
	latency := time.Since(start)

	var parsed openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%s response: %w", p.name, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &ProviderError{Provider: p.name, StatusCode: httpResp.StatusCode, Message: msg}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Message: "empty choice list"}
	}

	resp := &Response{
		Content:    parsed.Choices[0].Message.Content,
		Provider:   p.name,
		ModelID:    modelID,
		LatencyMS:  latency.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	if parsed.Usage != nil {
		resp.TokensIn = intPtr(parsed.Usage.PromptTokens)
		resp.TokensOut = intPtr(parsed.Usage.CompletionTokens)
	}
	return resp, nil
}
