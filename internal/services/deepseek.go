package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// deepSeekTimeout is the hard ceiling on one upstream call. There is no
// retry budget: a failure surfaces immediately and the caller decides.
const deepSeekTimeout = 120 * time.Second

// DeepSeek V3.2 pricing via OpenRouter, USD per million tokens. This is a
// pricing policy constant, not configuration.
const (
	inputCostPerMTok  = 0.25
	outputCostPerMTok = 0.38
)

// providerPreferences is OpenRouter's routing block: preferred providers in
// order, and whether zero-data-retention hosting is required.
type providerPreferences struct {
	Order      []string `json:"order"`
	RequireZDR bool     `json:"require_zdr"`
}

// chatCompletionRequest extends the standard chat-completion payload with
// the OpenRouter-specific provider routing and reasoning fields that
// go-openai has no notion of.
type chatCompletionRequest struct {
	openai.ChatCompletionRequest
	Provider  *providerPreferences `json:"provider,omitempty"`
	Reasoning bool                 `json:"reasoning,omitempty"`
}

// TokenUsage is the input/output token count of one upstream call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// CallResult is the normalized outcome of one upstream call.
type CallResult struct {
	Code        string     `json:"code"`
	Explanation string     `json:"explanation"`
	Suggestions []string   `json:"suggestions"`
	CostUSD     float64    `json:"cost_usd"`
	TokensUsed  TokenUsage `json:"tokens_used"`
}

// DeepSeekClient calls the DeepSeek worker model through the OpenRouter API.
// It owns one pooled HTTP transport for its lifetime; Close releases it.
type DeepSeekClient struct {
	apiKey     string
	model      string
	baseURL    string
	requireZDR bool
	providers  []string

	httpClient *http.Client
	closeOnce  sync.Once
}

// NewDeepSeekClient builds the upstream client from resolved configuration.
// A missing API key is a configuration error and fatal at startup.
func NewDeepSeekClient(cfg *config.OpenRouterConfig) (*DeepSeekClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Reason: "openrouter api_key is required"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	return &DeepSeekClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
		requireZDR: cfg.RequireZDR,
		providers:  cfg.PreferredProviders,
		httpClient: &http.Client{
			Timeout:   deepSeekTimeout,
			Transport: &http.Transport{},
		},
	}, nil
}

// Close releases the pooled connections. Idempotent; the owning broker
// calls it exactly once during teardown.
func (c *DeepSeekClient) Close() {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
}

// Call performs one operation against the worker model and returns the
// normalized result with its computed cost. Inputs are size-checked before
// any network I/O.
func (c *DeepSeekClient) Call(ctx context.Context, op Operation, args *CallArgs) (*CallResult, error) {
	spec, ok := operationSpecs[op]
	if !ok {
		return nil, &UnknownToolError{Name: string(op)}
	}

	if err := validateArgs(args); err != nil {
		return nil, err
	}

	payload := chatCompletionRequest{
		ChatCompletionRequest: openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: spec.systemPrompt(args)},
				{Role: openai.ChatMessageRoleUser, Content: spec.userPrompt(args)},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
		Provider: &providerPreferences{
			Order:      c.providers,
			RequireZDR: c.requireZDR,
		},
		Reasoning: spec.reasoning,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "grove-coder")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error().Err(err).Str("operation", string(op)).Msg("network error calling OpenRouter")
		return nil, ErrUpstreamConnectivity
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(detail)).
			Msg("OpenRouter API error")
		return nil, &UpstreamHTTPError{StatusCode: resp.StatusCode}
	}

	var completion openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		logger.Error().Err(err).Msg("malformed response from DeepSeek")
		return nil, ErrUnparseableResponse
	}
	if len(completion.Choices) == 0 {
		logger.Error().Msg("DeepSeek response has no choices")
		return nil, ErrUnparseableResponse
	}

	// The model is instructed to answer with a JSON object; a missing
	// "code" key means it did not follow the contract.
	var content struct {
		Code        *string  `json:"code"`
		Explanation string   `json:"explanation"`
		Suggestions []string `json:"suggestions"`
	}
	raw := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(raw), &content); err != nil || content.Code == nil {
		logger.Error().Err(err).Msg("malformed response from DeepSeek")
		return nil, ErrUnparseableResponse
	}

	usage := TokenUsage{
		Input:  completion.Usage.PromptTokens,
		Output: completion.Usage.CompletionTokens,
	}
	suggestions := content.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return &CallResult{
		Code:        *content.Code,
		Explanation: content.Explanation,
		Suggestions: suggestions,
		CostUSD:     CalculateCost(usage.Input, usage.Output),
		TokensUsed:  usage,
	}, nil
}

// CalculateCost computes the USD cost of one call from token counts,
// rounded to 6 decimals.
func CalculateCost(inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputCostPerMTok
	outputCost := float64(outputTokens) / 1_000_000 * outputCostPerMTok
	return round6(inputCost + outputCost)
}
