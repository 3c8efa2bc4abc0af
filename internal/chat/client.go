package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.ambient.xyz"
	DefaultTimeout = 30 * time.Second

	maxErrorBody    = 4 << 10
	maxResponseBody = 4 << 20
)

// ClientConfig is everything the completion client needs; nothing is read from globals.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the OpenAI-compatible Ambient inference API.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
	}
}

type Reasoning struct {
	Enabled bool `json:"enabled"`
}

type CompletionRequest struct {
	Model               string           `json:"model"`
	Messages            []domain.Message `json:"messages"`
	Temperature         float64          `json:"temperature"`
	MaxCompletionTokens int              `json:"max_completion_tokens"`
	Stream              bool             `json:"stream"`
	EmitUsage           bool             `json:"emit_usage"`
	EmitVerified        bool             `json:"emit_verified"`
	Reasoning           *Reasoning       `json:"reasoning,omitempty"`
}

type Choice struct {
	Index        int            `json:"index"`
	Message      domain.Message `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type CompletionResponse struct {
	ID         string   `json:"id"`
	Object     string   `json:"object"`
	Created    int64    `json:"created"`
	Model      string   `json:"model"`
	Choices    []Choice `json:"choices"`
	Usage      *Usage   `json:"usage,omitempty"`
	MerkleRoot string   `json:"merkle_root,omitempty"`
	Verified   *bool    `json:"verified,omitempty"`
}

type Model struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Created          int64    `json:"created"`
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
	ContextLength    int      `json:"context_length"`
	MaxOutputLength  int      `json:"max_output_length"`
	Description      string   `json:"description,omitempty"`
}

type ModelList struct {
	Object  string  `json:"object"`
	Data    []Model `json:"data"`
	HasMore bool    `json:"has_more"`
}

// CreateChatCompletion posts one non-streaming completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var resp CompletionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &resp); err != nil {
		return CompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, &domain.ProtocolError{Reason: "response has no choices"}
	}
	return resp, nil
}

func (c *Client) ListModels(ctx context.Context) (ModelList, error) {
	var list ModelList
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, &list); err != nil {
		return ModelList{}, err
	}
	return list, nil
}

func (c *Client) GetModel(ctx context.Context, id string) (Model, error) {
	var model Model
	if err := c.do(ctx, http.MethodGet, "/v1/models/"+url.PathEscape(id), nil, &model); err != nil {
		return Model{}, err
	}
	return model, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	log := logging.WithContext(ctx).WithFields(logrus.Fields{"method": method, "path": path})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, log, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   c.redact(string(raw)),
		}).Warn("ambient api returned an error")
		return &domain.UpstreamError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.transportError(ctx, log, err)
		}
		log.WithError(err).Warn("ambient api returned undecodable body")
		return &domain.ProtocolError{Reason: "decode response", Err: err}
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("ambient api call finished")
	return nil
}

func (c *Client) transportError(ctx context.Context, log *logrus.Entry, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		log.WithField("timeout", c.timeout.String()).Warn("ambient api call timed out")
		return fmt.Errorf("%w after %s", domain.ErrTimeout, c.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	log.WithError(errors.New(c.redact(err.Error()))).Warn("ambient api call failed")
	return &domain.UpstreamError{Message: "request failed"}
}

// redact keeps the bearer credential out of anything that reaches a log line.
func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "[REDACTED]")
}
