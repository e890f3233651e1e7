package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{"type": "string"},
		"level":   map[string]any{"type": "string", "enum": []string{"info", "warn"}},
	},
	"required": []string{"message"},
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		details   map[string]any
		wantValid bool
	}{
		{"valid", map[string]any{"message": "hi"}, true},
		{"missing_required", map[string]any{"level": "info"}, false},
		{"wrong_type", map[string]any{"message": 42}, false},
		{"enum_violation", map[string]any{"message": "hi", "level": "shout"}, false},
		{"nil_details", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(testSchema, tt.details)
			assert.Equal(t, tt.wantValid, result.IsValid)

			if !tt.wantValid {
				require.NotEmpty(t, result.Errors)
			}
		})
	}
}
