// Package ai answers room messages that mention the assistant.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Completer turns a prompt into a reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

var ErrEmptyCompletion = errors.New("completion service returned no text")

// HTTPCompleter calls a completion service speaking
// POST {"model","prompt"} -> {"completion"}.
type HTTPCompleter struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPCompleter builds a completer bounded by timeout.
func NewHTTPCompleter(endpoint, model string, timeout time.Duration) *HTTPCompleter {
	return &HTTPCompleter{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Completion string `json:"completion"`
}

func (c *HTTPCompleter) Model() string {
	return c.model
}

func (c *HTTPCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("chat-sync/ai").Start(ctx, "ai.complete")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", c.model), attribute.Int("ai.prompt_length", len(prompt)))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

func (c *HTTPCompleter) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion service status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if out.Completion == "" {
		return "", ErrEmptyCompletion
	}
	return out.Completion, nil
}
