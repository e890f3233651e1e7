// Package condition evaluates comparison-leaf expressions against execution
// context data. Evaluation is pure: no side effects, and missing or
// mistyped fields resolve to a well-defined boolean instead of an error.
package condition

import (
	"fmt"
	"regexp"
	"strings"
)

// ExpressionKey selects the expr-lang string form of a leaf:
// {"expression": "age > 18 and plan in ['pro', 'team']"}.
const ExpressionKey = "expression"

// Evaluator resolves structured comparison leaves. A leaf is a map of
// field -> expected value (equality) or field -> {operator: ..., value: ...}.
// All field/value pairs in one leaf must hold (implicit conjunction).
type Evaluator struct {
	expr *ExprEngine

	// aliases maps rule-side field names to entity-side data fields, for
	// rule trees authored against the product vocabulary rather than the
	// raw entity shape (e.g. product_package -> subscription_package).
	aliases map[string]string
}

// NewEvaluator creates an evaluator with the default field aliases.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		expr: NewExprEngine(),
		aliases: map[string]string{
			"product_package": "subscription_package",
			"product":         "subscription_product",
		},
	}
}

// WithAlias registers an additional rule-field to data-field alias.
func (e *Evaluator) WithAlias(field, target string) *Evaluator {
	e.aliases[field] = target

	return e
}

// Evaluate resolves a comparison leaf against the given data map.
func (e *Evaluator) Evaluate(leaf map[string]any, data map[string]any) (bool, error) {
	if len(leaf) == 0 {
		return true, nil
	}

	if exprStr, ok := leaf[ExpressionKey].(string); ok {
		return e.expr.EvaluateBool(exprStr, data)
	}

	for field, expected := range leaf {
		if field == "id" {
			continue
		}

		value, found := e.lookup(data, field)

		ok, err := matchField(field, value, found, expected)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// lookup resolves a field against the data map: direct key first, then
// dotted-path traversal, then the alias table.
func (e *Evaluator) lookup(data map[string]any, field string) (any, bool) {
	if v, ok := data[field]; ok {
		return v, true
	}

	if v, ok := LookupPath(data, field); ok {
		return v, true
	}

	if target, ok := e.aliases[field]; ok {
		if v, ok := data[target]; ok {
			return v, true
		}

		return LookupPath(data, target)
	}

	return nil, false
}

// LookupPath traverses nested maps by dotted path ("user.address.city").
func LookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(data)

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// matchField applies the expected clause to a resolved value. The expected
// clause is either a literal (equality) or an operator map, in either the
// {"operator": "gt", "value": 5} form or the shorthand {"gt": 5} form.
func matchField(field string, value any, found bool, expected any) (bool, error) {
	opMap, ok := expected.(map[string]any)
	if !ok {
		// Literal: equality against the resolved value. A missing field
		// only equals an explicit nil.
		if !found {
			return expected == nil, nil
		}

		return equal(value, expected), nil
	}

	if op, ok := opMap["operator"].(string); ok {
		return applyOperator(field, op, value, found, opMap["value"])
	}

	for op, operand := range opMap {
		ok, err := applyOperator(field, op, value, found, operand)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func applyOperator(field, op string, value any, found bool, operand any) (bool, error) {
	switch op {
	case "equals", "eq":
		return found && equal(value, operand), nil
	case "not_equals", "ne":
		return !found || !equal(value, operand), nil
	case "contains":
		return contains(value, operand), nil
	case "not_contains":
		return !contains(value, operand), nil
	case "in":
		return member(value, operand), nil
	case "not_in":
		return !member(value, operand), nil
	case "greater_than", "gt":
		return compareNumbers(value, operand, func(a, b float64) bool { return a > b }), nil
	case "greater_than_or_equal", "gte":
		return compareNumbers(value, operand, func(a, b float64) bool { return a >= b }), nil
	case "less_than", "lt":
		return compareNumbers(value, operand, func(a, b float64) bool { return a < b }), nil
	case "less_than_or_equal", "lte":
		return compareNumbers(value, operand, func(a, b float64) bool { return a <= b }), nil
	case "starts_with":
		s, sok := value.(string)
		prefix, pok := operand.(string)

		return sok && pok && strings.HasPrefix(s, prefix), nil
	case "ends_with":
		s, sok := value.(string)
		suffix, pok := operand.(string)

		return sok && pok && strings.HasSuffix(s, suffix), nil
	case "regex", "matches":
		s, sok := value.(string)
		pattern, pok := operand.(string)

		if !sok || !pok {
			return false, nil
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex for field %q: %w", field, err)
		}

		return re.MatchString(s), nil
	case "is_null":
		return !found || value == nil, nil
	case "is_not_null":
		return found && value != nil, nil
	case "is_empty":
		return empty(value) || !found, nil
	case "is_not_empty":
		return found && !empty(value), nil
	}

	return false, fmt.Errorf("unknown comparison operator %q for field %q", op, field)
}

func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(value, operand any) bool {
	switch v := value.(type) {
	case string:
		s, ok := operand.(string)

		return ok && strings.Contains(v, s)
	case []any:
		for _, item := range v {
			if equal(item, operand) {
				return true
			}
		}
	}

	return false
}

func member(value, operand any) bool {
	set, ok := operand.([]any)
	if !ok {
		return false
	}

	for _, item := range set {
		if equal(value, item) {
			return true
		}
	}

	return false
}

func compareNumbers(value, operand any, cmp func(a, b float64) bool) bool {
	a, aok := toFloat(value)
	b, bok := toFloat(operand)

	return aok && bok && cmp(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}

	return 0, false
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}

	return false
}

// Truthy is the combinator truthiness rule: false and nil are falsy,
// everything else (including zero numbers and empty strings carried as
// step results) is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}

	return true
}
