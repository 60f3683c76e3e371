package interpreter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
)

// EntryPoint is the reserved name of the circuit function in generated source.
const EntryPoint = "circuit"

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxSteps = 5_000_000
)

// fileOptions enables the Python constructs generated circuits commonly use
// at module level.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Options configures an Interpreter.
type Options struct {
	// Timeout bounds loading and each trace. Zero selects a default.
	Timeout time.Duration

	// MaxSteps bounds the Starlark execution steps of loading and each trace.
	MaxSteps uint64
}

// Interpreter loads generated source into an isolated Starlark namespace.
// The only bindings visible to the source are the circuit module (qml and
// pennylane), a numeric module (np, numpy and math) and the Starlark
// builtins. load statements are rejected.
type Interpreter struct {
	timeout  time.Duration
	maxSteps uint64
}

// New creates an interpreter.
func New(opts Options) *Interpreter {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	return &Interpreter{timeout: opts.Timeout, maxSteps: opts.MaxSteps}
}

func predeclared() starlark.StringDict {
	qml := newQMLModule()
	np := newNumericModule()
	return starlark.StringDict{
		"qml":       qml,
		"pennylane": qml,
		"np":        np,
		"numpy":     np,
		"pnp":       np,
		"math":      starlarkmath.Module,
		"__name__":  starlark.String("skadi"),
	}
}

func (in *Interpreter) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Suppress print for security
		},
	}
	thread.SetMaxExecutionSteps(in.maxSteps)
	return thread
}

// Load executes source and extracts the circuit entry point. Failures are
// returned as execution errors whose message is suitable as retry feedback.
func (in *Interpreter) Load(ctx context.Context, source string) (*QNode, error) {
	thread := in.newThread("load")

	loadCtx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()
	stop := context.AfterFunc(loadCtx, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", in.timeout))
	})
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "circuit.py", Preprocess(source), predeclared())
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, engine.NewExecutionError("Error executing generated code", errors.New(evalErr.Msg))
		}
		return nil, engine.NewExecutionError("Syntax error in generated code", err)
	}

	entry, ok := globals[EntryPoint]
	if !ok {
		return nil, engine.NewExecutionError(fmt.Sprintf("No '%s' function found in generated code", EntryPoint), nil)
	}

	q := &QNode{interp: in, source: source}
	switch fn := entry.(type) {
	case *qnodeValue:
		q.fn = fn.fn
		q.device = fn.device
	case starlark.Callable:
		q.fn = fn
		q.device = findDevice(globals)
	default:
		return nil, engine.NewExecutionError(fmt.Sprintf("'%s' is not callable (got %s)", EntryPoint, entry.Type()), nil)
	}
	return q, nil
}

// findDevice returns the first device bound at module level, by name order.
func findDevice(globals starlark.StringDict) circuit.Device {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if d, ok := globals[name].(*deviceValue); ok {
			return d.device
		}
	}
	return circuit.Device{}
}
