package condition

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine evaluates the string-expression form of comparison leaves with
// expr-lang. Compiled programs are cached and reused across goroutines.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{cache: make(map[string]*vm.Program)}
}

// EvaluateBool runs an expression against the data map and coerces the
// result with the engine-wide truthiness rule.
func (e *ExprEngine) EvaluateBool(expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(expression, data)
	if err != nil {
		return false, err
	}

	return Truthy(out), nil
}

// Evaluate compiles (or retrieves from cache) an expression and runs it with
// the data map as its environment. Undefined variables resolve to nil so
// missing fields never fail evaluation.
func (e *ExprEngine) Evaluate(expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty condition expression")
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	env := data
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("condition expression %q failed: %w", expression, err)
	}

	return out, nil
}

func (e *ExprEngine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("condition expression %q does not compile: %w", expression, err)
	}

	e.cache[expression] = program

	return program, nil
}
