// Package template renders dynamic step configuration against execution
// context data.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/relaykit/journey/pkg/models"
)

// RenderWithContext renders a template string with the execution context's
// data exposed under stable top-level names.
func RenderWithContext(input string, execCtx *models.ExecutionContext) (any, error) {
	data := map[string]any{
		"trigger_data": execCtx.TriggerData,
		"metadata":     execCtx.MetadataSnapshot(),
		"user_id":      execCtx.UserID,
		"env":          getEnvVars(),
		"execution": map[string]any{
			"id":          execCtx.ID,
			"workflow_id": execCtx.WorkflowID,
		},
	}

	if execCtx.Entity != nil {
		data["entity"] = map[string]any{
			"id":   execCtx.Entity.ID,
			"type": execCtx.Entity.Type,
			"data": execCtx.Entity.Data,
		}
	}

	return Render(input, data)
}

// Render executes a template against arbitrary data. Output that looks like
// a JSON object or array is parsed, so templates can produce structured
// values, not only strings.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("transform").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)

				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}
	}

	return result, nil
}

// RenderString renders and requires a string result. Structured render
// output (a template producing a JSON object or array) is re-encoded as
// JSON, so templated request bodies survive the round trip intact.
func RenderString(input string, execCtx *models.ExecutionContext) (string, error) {
	rendered, err := RenderWithContext(input, execCtx)
	if err != nil {
		return "", err
	}

	switch v := rendered.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	}

	encoded, err := json.Marshal(rendered)
	if err != nil {
		return fmt.Sprintf("%v", rendered), nil
	}

	return string(encoded), nil
}

func getEnvVars() map[string]string {
	envVars := make(map[string]string)

	for _, envVar := range os.Environ() {
		parts := strings.SplitN(envVar, "=", 2)
		if len(parts) == 2 {
			envVars[parts[0]] = parts[1]
		}
	}

	return envVars
}
