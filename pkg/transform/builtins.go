package transform

import (
	"fmt"

	"github.com/skadi/skadi/pkg/circuit"
)

// Built-in transform names.
const (
	CancelInverses    = "cancel_inverses"
	MergeRotations    = "merge_rotations"
	CommuteControlled = "commute_controlled"
	Simplify          = "simplify"
	Adjoint           = "adjoint"
	Decompose         = "decompose"
	Transpile         = "transpile"
)

func builtins() []Definition {
	return []Definition{
		{
			Name:        CancelInverses,
			Description: "Remove adjacent operations that undo each other",
			Build:       simple(cancelInverses),
		},
		{
			Name:        MergeRotations,
			Description: "Combine adjacent rotations of the same kind on the same wires",
			Build:       simple(mergeRotations),
		},
		{
			Name:        CommuteControlled,
			Description: "Move single-wire gates through controlled gates they commute with",
			Params:      []string{"direction"},
			Build: func(p Params) (circuit.TapeTransform, error) {
				dir, err := p.GetString("direction", "right")
				if err != nil {
					return nil, err
				}
				if dir != "right" && dir != "left" {
					return nil, fmt.Errorf("direction must be \"left\" or \"right\", got %q", dir)
				}
				return opsTransform(func(ops []circuit.Operation) ([]circuit.Operation, error) {
					return commuteControlled(ops, dir == "left"), nil
				}), nil
			},
		},
		{
			Name:        Simplify,
			Description: "Drop identities and zero rotations, normalize angles and collapse double adjoints",
			Build:       simple(simplify),
		},
		{
			Name:        Adjoint,
			Description: "Replace the circuit with its inverse",
			Build:       simple(adjoint),
		},
		{
			Name:        Decompose,
			Description: "Rewrite operations into a target gate set",
			Params:      []string{"gate_set", "max_expansion"},
			Required:    []string{"gate_set"},
			Build:       buildDecompose,
		},
		{
			Name:        Transpile,
			Description: "Route two-wire operations onto a device coupling map by inserting SWAPs",
			Params:      []string{"coupling_map"},
			Required:    []string{"coupling_map"},
			Build:       buildTranspile,
		},
	}
}

// simple adapts an operation-list rewrite that cannot fail.
func simple(fn func([]circuit.Operation) []circuit.Operation) func(Params) (circuit.TapeTransform, error) {
	return func(Params) (circuit.TapeTransform, error) {
		return opsTransform(func(ops []circuit.Operation) ([]circuit.Operation, error) {
			return fn(ops), nil
		}), nil
	}
}

// opsTransform lifts a rewrite of the operation list to a tape transform
// that keeps measurements and device unchanged.
func opsTransform(fn func([]circuit.Operation) ([]circuit.Operation, error)) circuit.TapeTransform {
	return func(t *circuit.Tape) (*circuit.Tape, error) {
		in := make([]circuit.Operation, len(t.Operations))
		for i, op := range t.Operations {
			in[i] = op.Copy()
		}
		out, err := fn(in)
		if err != nil {
			return nil, err
		}
		return t.WithOperations(out), nil
	}
}
