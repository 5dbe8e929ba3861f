package reportgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vocari/reportgen")

const (
	openaiMaxRetries   = 3
	openaiInitialDelay = 1 * time.Second
	openaiMaxDelay     = 8 * time.Second
	maxResponseBytes   = 4 << 20
)

// Completer returns the raw text of one chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	client       *http.Client
	initialDelay time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIClient(settings config.LLMSettings) (*OpenAIClient, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIClient{
		apiKey:       settings.APIKey,
		baseURL:      strings.TrimRight(settings.BaseURL, "/"),
		model:        settings.Model,
		client:       &http.Client{Timeout: timeout},
		initialDelay: openaiInitialDelay,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "openai.ChatCompletion", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff on transport errors, 429 and 5xx
	var lastErr error
	for attempt := 0; attempt < openaiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(utils.Backoff(c.initialDelay, openaiMaxDelay, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retry, err := c.send(ctx, body)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt+1))
			return text, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	err = fmt.Errorf("chat completion failed after retries: %w", lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "", err
}

func (c *OpenAIClient) send(ctx context.Context, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("HTTP request failed: %w", err)
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if err != nil {
		return "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr openaiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			err = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		} else {
			err = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, err
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", false, errors.New("chat completion returned empty content")
	}
	return text, false, nil
}
