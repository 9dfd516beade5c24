package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "llama3.2:3b"
	DefaultTimeout = 180 * time.Second

	generatePath = "/api/generate"
)

// OllamaConfig configures the Ollama generation client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OllamaGenerator calls a local Ollama server in non-streaming mode. It never retries:
// a failed or timed-out generation fails the request.
type OllamaGenerator struct {
	client *resty.Client
	model  string
	logger *zap.Logger
}

// NewOllamaGenerator builds a client for cfg. Empty fields take the package defaults.
func NewOllamaGenerator(cfg OllamaConfig, logger *zap.Logger) *OllamaGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return &OllamaGenerator{client: client, model: cfg.Model, logger: logger}
}

// Model returns the model name sent with each request.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// Generate posts the prompt and returns the trimmed "response" field.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	var apiErr errorResponse

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: g.model, Prompt: prompt, Stream: false}).
		SetResult(&out).
		SetError(&apiErr).
		Post(generatePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode(), msg)
	}

	g.logger.Debug("generation completed",
		zap.String("model", g.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_chars", len(out.Response)),
	)
	return strings.TrimSpace(out.Response), nil
}
