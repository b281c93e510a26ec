package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiFilePollEvery  = 2 * time.Second
	geminiFilePollFor    = 2 * time.Minute
)

// GeminiProvider adapts the Google Generative Language REST API. It is the
// only adapter with media upload support, used by the Gemini video
// processor.
type GeminiProvider struct {
	enabledFlag
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini adapter.
func NewGeminiProvider(apiKey string, opts ...ProviderOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		baseURL: geminiDefaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	applyOptions(&p.baseURL, &p.client, opts)
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a free-form text request.
func (p *GeminiProvider) Complete(ctx context.Context, modelID string, req Request) (*Response, error) {
	return p.generate(ctx, modelID, req, nil, "")
}

// CompleteStructured uses Gemini's native JSON response mode, then validates
// the payload against out.
func (p *GeminiProvider) CompleteStructured(ctx context.Context, modelID string, req Request, out any) (*Response, error) {
	resp, err := p.generate(ctx, modelID, req, nil, "application/json")
	if err != nil {
		return nil, err
	}
	if err := decodeStructured(resp.Content, out); err != nil {
		return nil, err
	}
	return resp, nil
}

// AnalyzeMedia prompts the model over a previously uploaded file. Used by the
// video transcript processor.
func (p *GeminiProvider) AnalyzeMedia(ctx context.Context, modelID string, req Request, fileURI, mimeType string) (*Response, error) {
	return p.generate(ctx, modelID, req, &geminiFileData{MimeType: mimeType, FileURI: fileURI}, "")
}

func (p *GeminiProvider) generate(ctx context.Context, modelID string, req Request, file *geminiFileData, responseMime string) (*Response, error) {
	parts := []geminiPart{}
	if file != nil {
		parts = append(parts, geminiPart{FileData: file})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxTokens,
			ResponseMimeType: responseMime,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(p.baseURL, "/"), modelID, p.apiKey)

	start := time.Now()
	var parsed geminiResponse
	if err := p.postJSON(ctx, endpoint, body, &parsed); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	if parsed.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), StatusCode: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Message: "empty candidate list"}
	}

	var content strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	resp := &Response{
		Content:    content.String(),
		Provider:   p.Name(),
		ModelID:    modelID,
		LatencyMS:  latency.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	if parsed.UsageMetadata != nil {
		resp.TokensIn = intPtr(parsed.UsageMetadata.PromptTokenCount)
		resp.TokensOut = intPtr(parsed.UsageMetadata.CandidatesTokenCount)
	}
	return resp, nil
}

type geminiFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type geminiFileEnvelope struct {
	File geminiFile `json:"file"`
}

// UploadFile pushes media bytes to the Gemini file store and blocks until the
// file is ACTIVE. Returns the file URI to reference from AnalyzeMedia.
func (p *GeminiProvider) UploadFile(ctx context.Context, r io.Reader, mimeType string) (string, error) {
	endpoint := fmt.Sprintf("%s/upload/v1beta/files?key=%s", strings.TrimRight(p.baseURL, "/"), p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mimeType)
	httpReq.Header.Set("X-Goog-Upload-Protocol", "raw")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini file upload: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Message: readErrorBody(httpResp.Body)}
	}

	var envelope geminiFileEnvelope
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("gemini file upload: decoding response: %w", err)
	}

	return p.waitFileActive(ctx, envelope.File)
}

func (p *GeminiProvider) waitFileActive(ctx context.Context, file geminiFile) (string, error) {
	deadline := time.Now().Add(geminiFilePollFor)
	for file.State == "PROCESSING" {
		if time.Now().After(deadline) {
			return "", &ProviderError{Provider: p.Name(), Message: fmt.Sprintf("file %s still processing after %s", file.Name, geminiFilePollFor)}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(geminiFilePollEvery):
		}

		endpoint := fmt.Sprintf("%s/v1beta/%s?key=%s", strings.TrimRight(p.baseURL, "/"), file.Name, p.apiKey)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", err
		}
		httpResp, err := p.client.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("gemini file poll: %w", err)
		}
		err = json.NewDecoder(httpResp.Body).Decode(&file)
		httpResp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("gemini file poll: decoding response: %w", err)
		}
	}
	if file.State != "ACTIVE" {
		return "", &ProviderError{Provider: p.Name(), Message: fmt.Sprintf("file %s entered state %s", file.Name, file.State)}
	}
	return file.URI, nil
}

func (p *GeminiProvider) postJSON(ctx context.Context, endpoint string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Message: readErrorBody(httpResp.Body)}
	}
	return json.NewDecoder(httpResp.Body).Decode(target)
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(data))
}
