// Package schema validates step details against executor JSON schemas.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relaykit/journey/pkg/models"
)

// Validate checks step details against a JSON schema and folds the findings
// into a ValidationResult.
func Validate(schema map[string]any, details map[string]any) *models.ValidationResult {
	result := models.Valid()

	if details == nil {
		details = map[string]any{}
	}

	outcome, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(details),
	)
	if err != nil {
		result.AddError(fmt.Sprintf("schema validation failed: %v", err))

		return result
	}

	for _, problem := range outcome.Errors() {
		result.AddError(problem.String())
	}

	return result
}
