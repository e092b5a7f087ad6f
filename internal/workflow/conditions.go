package workflow

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// ConditionEvaluator compiles and runs the expr-lang gating expressions
// attached to WorkflowNode.Condition, caching compiled programs across
// repeated evaluations of the same expression string.
type ConditionEvaluator struct {
	mu            sync.RWMutex
	compiledCache map[string]*vm.Program
}

// NewConditionEvaluator constructs an evaluator with an empty compile cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{
		compiledCache: make(map[string]*vm.Program),
	}
}

// Evaluate runs condition against vars and returns its boolean result. An
// empty condition is treated as unconditionally true, matching a node with
// no gating expression.
func (ce *ConditionEvaluator) Evaluate(condition string, vars map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}

	program, err := ce.compiled(condition)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, vars)
	if err != nil {
		if isUndefinedVariable(err.Error()) {
			return false, nil
		}
		return false, kerrors.NewWorkflowInvalid(fmt.Sprintf("condition %q failed to evaluate: %v", condition, err))
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, kerrors.NewWorkflowInvalid(fmt.Sprintf("condition %q did not evaluate to a boolean", condition))
	}
	return ok, nil
}

func (ce *ConditionEvaluator) compiled(condition string) (*vm.Program, error) {
	ce.mu.RLock()
	program, cached := ce.compiledCache[condition]
	ce.mu.RUnlock()
	if cached {
		return program, nil
	}

	program, err := expr.Compile(condition, expr.AsBool())
	if err != nil {
		return nil, kerrors.NewWorkflowInvalid("failed to compile condition: " + err.Error())
	}

	ce.mu.Lock()
	ce.compiledCache[condition] = program
	ce.mu.Unlock()
	return program, nil
}

func isUndefinedVariable(errMsg string) bool {
	for _, pattern := range []string{"cannot fetch", "undefined", "unknown name", "not found"} {
		if strings.Contains(strings.ToLower(errMsg), pattern) {
			return true
		}
	}
	return false
}
