package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/copilot/internal/models"
)

// ErrUnhealthy is returned when the server does not report status ok.
var ErrUnhealthy = errors.New("server is not healthy")

// ClientConfig configures the HTTP client used to query the copilot.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// Client calls the copilot HTTP API.
type Client struct {
	http *resty.Client
}

type askBody struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewClient builds a client. Failed requests and 5xx responses are retried with linear backoff.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 700 * time.Millisecond
	}
	backoff := cfg.Backoff
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(backoff * time.Duration(cfg.Retries+1)).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp == nil || resp.Request == nil {
				return backoff, nil
			}
			return backoff * time.Duration(resp.Request.Attempt), nil
		})
	client.AddRetryCondition(retryCondition)
	return &Client{http: client}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r != nil && r.StatusCode() >= 500
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.IsError() || out.Status != "ok" {
		return fmt.Errorf("%w: status %d %q", ErrUnhealthy, resp.StatusCode(), out.Status)
	}
	return nil
}

// AskLLM posts the question to /ask_llm.
func (c *Client) AskLLM(ctx context.Context, question string, topK int) (*models.Response, error) {
	var out models.Response
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(askBody{Question: question, TopK: topK}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/ask_llm")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("request failed: status %d: %s", resp.StatusCode(), msg)
	}
	return &out, nil
}
