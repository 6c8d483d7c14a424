package eval

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ResultName is the binding a code payload must assign.
const ResultName = "resultado"

// maxExecutionSteps is a coarse upper bound on interpreter work, a backstop
// behind the wall-clock timeout.
const maxExecutionSteps = 500_000_000

func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// Sandbox executes a restricted code payload against scenario bindings. The
// payload is compiled once; each Execute runs it in a fresh namespace under a
// hard wall-clock timeout enforced from outside the executing goroutine.
type Sandbox struct {
	src      string
	timeout  time.Duration
	varNames map[string]bool
	prog     *starlark.Program
	base     starlark.StringDict
}

// CompileCode compiles the payload under the restricted dialect. Disallowed
// constructs and unresolved names are rejected here, before any scenario is
// processed.
func CompileCode(src string, varNames []string, timeout time.Duration) (*Sandbox, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SecurityError{Message: "code cannot be empty"}
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Sandbox{
		src:      src,
		timeout:  timeout,
		varNames: make(map[string]bool, len(varNames)),
		base:     baseNamespace(),
	}

	for _, name := range varNames {
		s.varNames[name] = true
	}

	isPredeclared := func(name string) bool {
		if s.varNames[name] {
			return true
		}

		_, ok := s.base[name]

		return ok
	}

	_, prog, err := starlark.SourceProgramOptions(fileOptions(), "modelo.star", src, isPredeclared)
	if err != nil {
		return nil, &SecurityError{Message: fmt.Sprintf("code contains operations not allowed: %v", err)}
	}

	s.prog = prog

	return s, nil
}

// Timeout returns the wall-clock budget of each execution.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

// Execute runs the payload with the given bindings and returns the value
// assigned to 'resultado'. On timeout the executing goroutine is cancelled
// and abandoned and a TimeoutError is returned.
func (s *Sandbox) Execute(bindings map[string]float64) (float64, error) {
	predeclared := make(starlark.StringDict, len(s.base)+len(bindings))

	for k, v := range s.base {
		predeclared[k] = v
	}

	for k, v := range bindings {
		predeclared[k] = starlark.Float(v)
	}

	// Every name resolved as predeclared at compile time must exist here.
	// A scenario missing a model variable fails at use, not at init.
	for name := range s.varNames {
		if _, ok := predeclared[name]; !ok {
			predeclared[name] = starlark.None
		}
	}

	thread := &starlark.Thread{
		Name: "sandbox",
		Load: loadWhitelisted,
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)

	done := make(chan struct{})

	var (
		globals starlark.StringDict
		execErr error
	)

	go func() {
		defer close(done)
		globals, execErr = s.prog.Init(thread, predeclared)
	}()

	select {
	case <-done:
	case <-time.After(s.timeout):
		thread.Cancel("timeout")

		return 0, &TimeoutError{Timeout: s.timeout}
	}

	if execErr != nil {
		return 0, classifyExecError(execErr, s.timeout)
	}

	value, ok := globals[ResultName]
	if !ok {
		return 0, &MissingResultError{Name: ResultName}
	}

	f, ok := starlark.AsFloat(value)
	if !ok {
		return 0, &ExpressionError{Message: fmt.Sprintf("'%s' is not numeric: %s", ResultName, value.Type())}
	}

	return f, nil
}

func classifyExecError(err error, timeout time.Duration) error {
	var secErr *SecurityError
	if errors.As(err, &secErr) {
		return secErr
	}

	msg := err.Error()

	if strings.Contains(msg, "cancelled") || strings.Contains(msg, "too many steps") {
		return &TimeoutError{Timeout: timeout}
	}

	if strings.Contains(msg, "cannot load") {
		return &SecurityError{Message: msg}
	}

	// Runtime failures (division by zero, domain errors, type errors) depend
	// on the bindings and are retryable.
	return &ArithmeticError{Message: msg}
}

// loadWhitelisted satisfies load statements from the pre-registered module
// whitelist only.
func loadWhitelisted(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	if module == "math" || module == "math.star" {
		members := make(starlark.StringDict, len(libmath.Module.Members)+1)

		for k, v := range libmath.Module.Members {
			members[k] = v
		}

		members["math"] = libmath.Module

		return members, nil
	}

	return nil, &SecurityError{Message: fmt.Sprintf("load of module '%s' not allowed, allowed: math", module)}
}

// baseNamespace builds the fixed safe namespace: the math module, the flat
// curated function table shared with expression mode, and the numeric
// constants.
func baseNamespace() starlark.StringDict {
	ns := make(starlark.StringDict, len(functions)+len(constants)+1)

	ns["math"] = libmath.Module

	for name, fn := range functions {
		ns[name] = starlark.NewBuiltin(name, wrapFunction(name, fn))
	}

	for name, value := range constants {
		ns[name] = starlark.Float(value)
	}

	return ns
}

func wrapFunction(name string, fn function) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, &SecurityError{Message: fmt.Sprintf("%s: keyword arguments not allowed", name)}
		}

		if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
			return nil, fmt.Errorf("%s: got %d arguments", name, len(args))
		}

		values := make([]float64, len(args))

		for i, arg := range args {
			f, ok := starlark.AsFloat(arg)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d is not numeric", name, i+1)
			}

			values[i] = f
		}

		result, err := fn.call(values)
		if err != nil {
			return nil, err
		}

		return starlark.Float(result), nil
	}
}

// ValidateCode checks a code payload without executing it: the restricted
// dialect must parse it and it must syntactically assign 'resultado'.
func ValidateCode(src string) error {
	f, err := fileOptions().Parse("modelo.star", src, 0)
	if err != nil {
		return &SecurityError{Message: fmt.Sprintf("syntax error in code: %v", err)}
	}

	if !assignsResult(f) {
		return &MissingResultError{Name: ResultName}
	}

	return nil
}

func assignsResult(f *syntax.File) bool {
	found := false

	for _, stmt := range f.Stmts {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			if found {
				return false
			}

			assign, ok := n.(*syntax.AssignStmt)
			if !ok {
				return true
			}

			if targetsName(assign.LHS, ResultName) {
				found = true
				return false
			}

			return true
		})
	}

	return found
}

func targetsName(expr syntax.Expr, name string) bool {
	switch e := expr.(type) {
	case *syntax.Ident:
		return e.Name == name
	case *syntax.TupleExpr:
		for _, elem := range e.List {
			if targetsName(elem, name) {
				return true
			}
		}
	case *syntax.ListExpr:
		for _, elem := range e.List {
			if targetsName(elem, name) {
				return true
			}
		}
	case *syntax.ParenExpr:
		return targetsName(e.X, name)
	}

	return false
}
