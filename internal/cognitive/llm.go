package cognitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// analysisPrompt asks for a single JSON object. The snapshot is embedded as
// JSON so the model sees exactly what the validator will check against.
const analysisPrompt = `You are an advisory analyst for a fleet of automated social media accounts.
You never approve or reject actions; a separate rule engine does that.

Review this snapshot of fleet state and the proposed action:

%s

Respond with ONE JSON object and nothing else, using exactly these keys:
{
  "observations": [string],
  "detected_patterns": [string],
  "strategic_suggestions": [string],
  "risk_signals": [{"name": string, "severity": "critical|high|medium|low", "detail": string}],
  "recommended_adjustments": [string],
  "confidence": number between 0 and 1,
  "reasoning": string
}

Only report risks supported by the snapshot. Use "critical" only for account-threatening risks such as shadowbans or flags.`

var validSeverities = map[string]bool{
	model.SeverityCritical: true,
	model.SeverityHigh:     true,
	model.SeverityMedium:   true,
	model.SeverityLow:      true,
}

// defaultCallTimeout bounds the HTTP client when no context deadline is set.
// Guarded normally applies the shorter per-stage timeout.
const defaultCallTimeout = 30 * time.Second

func formatPrompt(s model.Snapshot) (string, error) {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return fmt.Sprintf(analysisPrompt, body), nil
}

type llmResponse struct {
	Observations           []string           `json:"observations"`
	DetectedPatterns       []string           `json:"detected_patterns"`
	StrategicSuggestions   []string           `json:"strategic_suggestions"`
	RiskSignals            []model.RiskSignal `json:"risk_signals"`
	RecommendedAdjustments []string           `json:"recommended_adjustments"`
	Confidence             *float64           `json:"confidence"`
	Reasoning              string             `json:"reasoning"`
}

// ParseAnalyzerResponse extracts the JSON object from a model reply. Prose
// around the object and markdown fences are tolerated. A missing or
// out-of-range confidence is an error so ambiguous replies fall back to the
// neutral result instead of reaching the validator.
func ParseAnalyzerResponse(response, source string) (model.AnalyzerOutput, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return model.AnalyzerOutput{}, fmt.Errorf("analyzer: no JSON object in response")
	}

	var r llmResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &r); err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("analyzer: decode response: %w", err)
	}
	if r.Confidence == nil {
		return model.AnalyzerOutput{}, fmt.Errorf("analyzer: response has no confidence")
	}
	if *r.Confidence < 0 || *r.Confidence > 1 {
		return model.AnalyzerOutput{}, fmt.Errorf("analyzer: confidence %v outside [0,1]", *r.Confidence)
	}

	// Unknown severities are downgraded rather than failing the whole reply.
	signals := make([]model.RiskSignal, 0, len(r.RiskSignals))
	for _, sig := range r.RiskSignals {
		if sig.Name == "" {
			continue
		}
		sig.Severity = strings.ToLower(strings.TrimSpace(sig.Severity))
		if !validSeverities[sig.Severity] {
			sig.Severity = model.SeverityLow
		}
		sig.Source = source
		signals = append(signals, sig)
	}

	return normalize(model.AnalyzerOutput{
		Observations:           r.Observations,
		DetectedPatterns:       r.DetectedPatterns,
		StrategicSuggestions:   r.StrategicSuggestions,
		RiskSignals:            signals,
		RecommendedAdjustments: r.RecommendedAdjustments,
		Confidence:             *r.Confidence,
		Reasoning:              r.Reasoning,
		Available:              true,
		Source:                 source,
	}), nil
}

// newLLMClient returns a client whose calls show up as child spans of the
// evaluation that triggered them.
func newLLMClient() *http.Client {
	return &http.Client{
		Timeout:   defaultCallTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// OllamaAnalyzer analyzes snapshots with a local Ollama chat model.
type OllamaAnalyzer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaAnalyzer creates an analyzer that calls Ollama's chat API.
func NewOllamaAnalyzer(baseURL, model string) *OllamaAnalyzer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAnalyzer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: newLLMClient(),
	}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (a *OllamaAnalyzer) Analyze(ctx context.Context, s model.Snapshot) (model.AnalyzerOutput, error) {
	prompt, err := formatPrompt(s)
	if err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("ollama analyzer: %w", err)
	}
	body, err := json.Marshal(ollamaChatRequest{
		Model:    a.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   "json",
	})
	if err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("ollama analyzer: marshal: %w", err)
	}

	var result ollamaChatResponse
	if err := postJSON(ctx, a.httpClient, a.baseURL+"/api/chat", "", body, &result); err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("ollama analyzer: %w", err)
	}
	return ParseAnalyzerResponse(result.Message.Content, "ollama")
}

// OpenAIAnalyzer analyzes snapshots with the OpenAI chat completions API.
type OpenAIAnalyzer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIAnalyzer creates an analyzer that calls the OpenAI chat completions
// API. An empty baseURL uses api.openai.com.
func NewOpenAIAnalyzer(baseURL, apiKey, model string) *OpenAIAnalyzer {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAnalyzer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: newLLMClient(),
	}
}

type openAIChatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, s model.Snapshot) (model.AnalyzerOutput, error) {
	prompt, err := formatPrompt(s)
	if err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("openai analyzer: %w", err)
	}
	body, err := json.Marshal(openAIChatRequest{
		Model:          a.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("openai analyzer: marshal: %w", err)
	}

	var result openAIChatResponse
	if err := postJSON(ctx, a.httpClient, a.baseURL+"/v1/chat/completions", a.apiKey, body, &result); err != nil {
		return model.AnalyzerOutput{}, fmt.Errorf("openai analyzer: %w", err)
	}
	if len(result.Choices) == 0 {
		return model.AnalyzerOutput{}, fmt.Errorf("openai analyzer: no choices in response")
	}
	return ParseAnalyzerResponse(result.Choices[0].Message.Content, "openai")
}

func postJSON(ctx context.Context, client *http.Client, url, bearer string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
