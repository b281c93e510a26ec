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
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
)

// AnthropicProvider adapts the Anthropic Messages API. The API has no native
// structured-output mode, so the schema is injected into the system prompt
// and the response parsed and validated locally.
type AnthropicProvider struct {
	enabledFlag
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicProvider creates an Anthropic adapter.
func NewAnthropicProvider(apiKey string, opts ...ProviderOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: anthropicDefaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	applyOptions(&p.baseURL, &p.client, opts)
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a free-form text request.
func (p *AnthropicProvider) Complete(ctx context.Context, modelID string, req Request) (*Response, error) {
	return p.send(ctx, modelID, req)
}

// CompleteStructured injects the target shape into the system prompt, then
// parses and validates the text response.
func (p *AnthropicProvider) CompleteStructured(ctx context.Context, modelID string, req Request, out any) (*Response, error) {
	structured := req
	structured.SystemPrompt = structuredSystemPrompt(req.SystemPrompt, out)

	resp, err := p.send(ctx, modelID, structured)
	if err != nil {
		return nil, err
	}
	if err := decodeStructured(resp.Content, out); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *AnthropicProvider) send(ctx context.Context, modelID string, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // max_tokens is mandatory on this API
	}

	body := anthropicRequest{
		Model:       modelID,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer httpResp.Body.Close()
	latency := time.Since(start)

	var parsed anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("anthropic response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Message: msg}
	}

	var content strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	resp := &Response{
		Content:    content.String(),
		Provider:   p.Name(),
		ModelID:    modelID,
		LatencyMS:  latency.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	if parsed.Usage != nil {
		resp.TokensIn = intPtr(parsed.Usage.InputTokens)
		resp.TokensOut = intPtr(parsed.Usage.OutputTokens)
	}
	return resp, nil
}
