package models

// ExecutionResult is the structured outcome of one action dispatch. Unknown
// action types and transient action failures are reported here rather than
// as engine errors, so sibling branches can keep going.
type ExecutionResult struct {
	Success  bool           `json:"success"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Truthy reports how a combinator should weigh this result.
func (r *ExecutionResult) Truthy() bool {
	return r != nil && r.Success
}

// ValidationResult is a structured error/warning list produced by node
// executors and the rule-tree validator. Validation problems are surfaced as
// lists, never as panics that could take down a sweep.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Valid returns an empty, passing validation result.
func Valid() *ValidationResult {
	return &ValidationResult{IsValid: true}
}

// AddError records a validation failure.
func (v *ValidationResult) AddError(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}

// AddWarning records a non-fatal finding.
func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Merge folds another result into this one.
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}

	if !other.IsValid {
		v.IsValid = false
	}

	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}
