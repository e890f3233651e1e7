// Package httprequest provides the HTTP request step executor.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaykit/journey/pkg/executors/schema"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/template"
)

const defaultTimeoutSeconds = 30

// Executor performs HTTP requests with retry support. Non-2xx responses and
// network errors are transient failures, reported through the result rather
// than as engine faults.
type Executor struct {
	client *http.Client
}

func NewExecutor() *Executor {
	return &Executor{
		client: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
	}
}

func (e *Executor) NodeType() string {
	return "http_request"
}

func (e *Executor) Dependencies() []string {
	return nil
}

type requestConfig struct {
	url      string
	method   string
	headers  map[string]string
	body     string
	attempts int
	delay    time.Duration
}

func parseConfig(details map[string]any) requestConfig {
	config := requestConfig{
		method:   http.MethodGet,
		headers:  map[string]string{},
		attempts: 1,
	}

	config.url, _ = details["url"].(string)

	if method, ok := details["method"].(string); ok && method != "" {
		config.method = strings.ToUpper(method)
	}

	if headers, ok := details["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				config.headers[k] = s
			}
		}
	}

	config.body, _ = details["body"].(string)

	if retries, ok := details["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok && attempts >= 1 {
			config.attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok && delay > 0 {
			config.delay = time.Duration(delay) * time.Millisecond
		}
	}

	return config
}

func (e *Executor) Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error) {
	config := parseConfig(step.ActionDetails)

	url, err := template.RenderString(config.url, execCtx)
	if err != nil {
		return failure("failed to render URL template: " + err.Error()), nil
	}

	body := config.body
	if body != "" {
		body, err = template.RenderString(body, execCtx)
		if err != nil {
			return failure("failed to render body template: " + err.Error()), nil
		}
	}

	headers := make(map[string]string, len(config.headers))

	for key, value := range config.headers {
		rendered, err := template.RenderString(value, execCtx)
		if err != nil {
			headers[key] = value

			continue
		}

		headers[key] = rendered
	}

	var lastFailure string

	for attempt := 1; attempt <= config.attempts; attempt++ {
		if attempt > 1 && config.delay > 0 {
			select {
			case <-time.After(config.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, transient := e.perform(ctx, config.method, url, body, headers)
		if transient == "" {
			return result, nil
		}

		lastFailure = transient
	}

	return failure(fmt.Sprintf("request failed after %d attempts: %s", config.attempts, lastFailure)), nil
}

// perform runs one attempt. A non-empty second return is a transient failure
// eligible for retry.
func (e *Executor) perform(ctx context.Context, method, url, body string, headers map[string]string) (*models.ExecutionResult, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, "failed to build request: " + err.Error()
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err.Error()
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "failed to read response body: " + err.Error()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	var parsedBody any
	if err := json.Unmarshal(responseBody, &parsedBody); err != nil {
		parsedBody = string(responseBody)
	}

	return &models.ExecutionResult{
		Success: true,
		Result: map[string]any{
			"status_code": resp.StatusCode,
			"body":        parsedBody,
		},
	}, ""
}

func failure(message string) *models.ExecutionResult {
	return &models.ExecutionResult{Success: false, Error: message}
}

func (e *Executor) Validate(step *models.RuleNode) *models.ValidationResult {
	return schema.Validate(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP URL to request. Supports templating",
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers. Values support templating",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating",
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "number", "minimum": 1, "maximum": 10},
					"delay":    map[string]any{"type": "number", "minimum": 0, "maximum": 30000},
				},
			},
		},
		"required": []string{"url"},
	}, step.ActionDetails)
}
