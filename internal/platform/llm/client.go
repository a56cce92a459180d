// Package llm is the text-generation collaborator: a minimal client for
// OpenAI-compatible chat-completion endpoints. Retry and timeout policy for
// the external call lives entirely here; the note pipeline treats this as a
// black box.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ServiceError kinds.
const (
	KindAuth      = "auth"
	KindQuota     = "quota"
	KindTransport = "transport"
	KindRequest   = "request"
	KindServer    = "server"
)

// ServiceError describes a failed generation call.
type ServiceError struct {
	Kind       string
	StatusCode int // 0 for transport failures
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("generation service: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("generation service: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Config holds client settings. APIKey is injected by the caller at startup;
// nothing in this package reads the environment.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	backoff time.Duration // base backoff, doubled per attempt
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
		backoff: time.Second,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends one chat completion request and returns the first choice's
// content. Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff up to MaxRetries; auth and other client errors are not.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		text, svcErr := c.call(ctx, system, prompt)
		if svcErr == nil {
			return text, nil
		}

		if !retryable(svcErr) || attempt >= c.cfg.MaxRetries {
			return "", svcErr
		}

		backoff := c.backoff << uint(attempt)
		c.log.Warn().
			Str("kind", svcErr.Kind).
			Int("status", svcErr.StatusCode).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("generation call failed, retrying")

		select {
		case <-ctx.Done():
			return "", &ServiceError{Kind: KindTransport, Message: ctx.Err().Error()}
		case <-time.After(backoff):
		}
	}
}

func retryable(e *ServiceError) bool {
	return e.Kind == KindTransport || e.Kind == KindQuota || e.Kind == KindServer
}

func (c *Client) call(ctx context.Context, system, prompt string) (string, *ServiceError) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", &ServiceError{Kind: KindRequest, Message: "marshal request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &ServiceError{Kind: KindRequest, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ServiceError{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ServiceError{Kind: KindTransport, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ServiceError{Kind: KindServer, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	if parsed.Error != nil {
		return "", &ServiceError{Kind: KindServer, StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &ServiceError{Kind: KindServer, StatusCode: resp.StatusCode, Message: "no choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}

func statusError(status int, body []byte) *ServiceError {
	msg := string(body)
	var parsed chatResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	kind := KindRequest
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindQuota
	case status >= 500:
		kind = KindServer
	}
	return &ServiceError{Kind: kind, StatusCode: status, Message: msg}
}
