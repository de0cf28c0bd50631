// Package gemini provides a generator.Provider backed by the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/generator"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "gemini"

	// DefaultBaseURL is the Generative Language API base URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-flash-lite"

	// DefaultTimeout bounds a single generateContent call.
	DefaultTimeout = 25 * time.Second
)

// ErrNoAPIKey is returned by NewClient when no API key is configured.
var ErrNoAPIKey = errors.New("gemini API key is required")

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig returns the sampling parameters used for plans.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 2048,
	}
}

// ClientConfig holds configuration for the Gemini client.
type ClientConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model name. Default: DefaultModel
	Model string

	// BaseURL is the API base URL. Default: DefaultBaseURL
	BaseURL string

	// Generation holds sampling parameters. Default: DefaultGenerationConfig()
	Generation *GenerationConfig

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Timeout bounds each attempt of the default resilient client.
	Timeout time.Duration

	// Registry receives provider health when the default client is used.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a Gemini generateContent client.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	generation GenerationConfig
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a Gemini client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	generation := DefaultGenerationConfig()
	if cfg.Generation != nil {
		generation = *cfg.Generation
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = DefaultTimeout
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		generation: generation,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// API request/response types.

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends prompt as a single user turn and returns the concatenated text
// of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: c.generation,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &generator.Error{Provider: ProviderName, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, data)
	}

	var result generateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &generator.Error{Provider: ProviderName, Message: "decode response", Err: err}
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", &generator.Error{
			Provider: ProviderName,
			Code:     result.PromptFeedback.BlockReason,
			Message:  "prompt blocked: " + result.PromptFeedback.BlockReason,
			Err:      generator.ErrBlocked,
		}
	}
	if len(result.Candidates) == 0 {
		return "", &generator.Error{Provider: ProviderName, Message: "no candidates", Err: generator.ErrEmptyResponse}
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("finish_reason", result.Candidates[0].FinishReason).
		Int("chars", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("gemini response received")

	return text.String(), nil
}

func (c *Client) transportError(err error) error {
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) {
		return statusError(statusErr.StatusCode, statusErr.Body)
	}
	msg := "request failed"
	if errors.Is(err, resilience.ErrCircuitOpen) {
		msg = "provider temporarily unavailable"
	}
	return &generator.Error{Provider: ProviderName, Message: msg, Err: err}
}

func statusError(status int, body []byte) error {
	e := &generator.Error{Provider: ProviderName, StatusCode: status}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		e.Code = apiErr.Error.Status
		e.Message = apiErr.Error.Message
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}
