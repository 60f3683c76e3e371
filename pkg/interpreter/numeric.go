package interpreter

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// newNumericModule builds the small numpy subset generated circuits use
// for angles.
func newNumericModule() *starlarkstruct.Module {
	members := starlark.StringDict{
		"pi":    starlark.Float(math.Pi),
		"e":     starlark.Float(math.E),
		"array": starlark.NewBuiltin("array", builtinArray),
	}
	for name, fn := range map[string]func(float64) float64{
		"abs":    math.Abs,
		"sqrt":   math.Sqrt,
		"sin":    math.Sin,
		"cos":    math.Cos,
		"tan":    math.Tan,
		"arcsin": math.Asin,
		"arccos": math.Acos,
		"arctan": math.Atan,
		"exp":    math.Exp,
		"log":    math.Log,
	} {
		members[name] = unaryFloat(name, fn)
	}
	return &starlarkstruct.Module{Name: "numpy", Members: members}
}

func unaryFloat(name string, fn func(float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		f, ok := starlark.AsFloat(x)
		if !ok {
			return nil, fmt.Errorf("%s: expected a number, got %s", b.Name(), x.Type())
		}
		return starlark.Float(fn(f)), nil
	})
}

// builtinArray returns its sequence argument as a list. Keywords such as
// requires_grad do not change traced values and are ignored.
func builtinArray(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &seq); err != nil {
		return nil, err
	}
	items := make([]starlark.Value, 0)
	iter := seq.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		items = append(items, v)
	}
	return starlark.NewList(items), nil
}
