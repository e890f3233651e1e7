package httprequest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/testutil"
)

func TestExecute_TemplatedRequest(t *testing.T) {
	var (
		gotPath   string
		gotBody   string
		gotHeader string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Get("X-User")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	executor := NewExecutor()

	step := models.ParseRuleNode(map[string]any{
		"action": "http_request",
		"details": map[string]any{
			"url":     server.URL + "/subscriptions/{{.trigger_data.subscription_id}}",
			"method":  "post",
			"body":    `{"package": "{{.trigger_data.subscription_package}}"}`,
			"headers": map[string]any{"X-User": "{{.user_id}}"},
		},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "/subscriptions/sub-1", gotPath)
	assert.JSONEq(t, `{"package": "premium"}`, gotBody)
	assert.Equal(t, "user-1", gotHeader)

	output, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, output["status_code"])

	parsedBody, ok := output["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, parsedBody["ok"])
}

func TestExecute_NonJSONBodyStaysAString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	executor := NewExecutor()

	step := models.ParseRuleNode(map[string]any{
		"action":  "http_request",
		"details": map[string]any{"url": server.URL},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	require.True(t, result.Success)

	output, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain text", output["body"])
}

func TestExecute_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	executor := NewExecutor()

	step := models.ParseRuleNode(map[string]any{
		"action": "http_request",
		"details": map[string]any{
			"url":     server.URL,
			"retries": map[string]any{"attempts": 3.0, "delay": 1.0},
		},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestExecute_ServerErrorIsATransientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	executor := NewExecutor()

	step := models.ParseRuleNode(map[string]any{
		"action":  "http_request",
		"details": map[string]any{"url": server.URL},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unexpected status 500")
}

func TestValidate(t *testing.T) {
	executor := NewExecutor()

	tests := []struct {
		name      string
		details   map[string]any
		wantValid bool
	}{
		{"valid", map[string]any{"url": "https://example.com", "method": "POST"}, true},
		{"missing_url", map[string]any{"method": "GET"}, false},
		{"bad_method", map[string]any{"url": "https://example.com", "method": "FETCH"}, false},
		{"too_many_attempts", map[string]any{"url": "https://example.com", "retries": map[string]any{"attempts": 50.0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := models.ParseRuleNode(map[string]any{"action": "http_request", "details": tt.details})

			result := executor.Validate(step)
			assert.Equal(t, tt.wantValid, result.IsValid)
		})
	}
}
