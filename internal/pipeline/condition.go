package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// JobStatus is what the status functions in a condition look at.
type JobStatus struct {
	Failed   bool
	Canceled bool
}

// ConditionEvaluator compiles and evaluates step conditions. Compiled
// programs are cached by expression text.
//
// Conditions are expr expressions with these functions:
//
//	succeeded()  no earlier step failed and the run is not canceled
//	failed()     an earlier step failed
//	canceled()   the run was canceled
//	always()     true
//	eq(a, b)     case-insensitive string equality
//	ne(a, b)     negation of eq
//
// and a variables map, e.g. succeeded() && eq(variables.target, 'release').
// Boolean combinations use &&, || and !.
type ConditionEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewConditionEvaluator creates an evaluator with an empty cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{programs: make(map[string]*vm.Program)}
}

// conditionEnv is the environment expressions are compiled against. The
// function fields are only used for type checking; Evaluate builds one bound
// to the actual job status.
type conditionEnv struct {
	Variables map[string]string      `expr:"variables"`
	Succeeded func() bool            `expr:"succeeded"`
	Failed    func() bool            `expr:"failed"`
	Canceled  func() bool            `expr:"canceled"`
	Always    func() bool            `expr:"always"`
	Eq        func(a, b string) bool `expr:"eq"`
	Ne        func(a, b string) bool `expr:"ne"`
}

func newConditionEnv(variables map[string]string, status JobStatus) conditionEnv {
	if variables == nil {
		variables = map[string]string{}
	}
	eq := func(a, b string) bool { return strings.EqualFold(a, b) }
	return conditionEnv{
		Variables: variables,
		Succeeded: func() bool { return !status.Failed && !status.Canceled },
		Failed:    func() bool { return status.Failed && !status.Canceled },
		Canceled:  func() bool { return status.Canceled },
		Always:    func() bool { return true },
		Eq:        eq,
		Ne:        func(a, b string) bool { return !eq(a, b) },
	}
}

// Compile checks that expression is a valid boolean condition.
func (e *ConditionEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs expression against the variables and job status.
func (e *ConditionEvaluator) Evaluate(expression string, variables map[string]string, status JobStatus) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, newConditionEnv(variables, status))
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("condition %q returned %T, not a boolean", expression, result)
	}
	return ok, nil
}

func (e *ConditionEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.Env(conditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()
	return program, nil
}
