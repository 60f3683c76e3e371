package transform

import (
	"math"

	"github.com/skadi/skadi/pkg/circuit"
)

const angleTolerance = 1e-8

// lastOnWires returns the index in ops of the latest operation sharing a
// wire with op, or -1.
func lastOnWires(ops []circuit.Operation, op circuit.Operation) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].SharesWire(op) {
			return i
		}
	}
	return -1
}

func removeAt(ops []circuit.Operation, i int) []circuit.Operation {
	return append(ops[:i], ops[i+1:]...)
}

// cancelInverses removes pairs of operations that undo each other with
// nothing between them on their wires. Removal exposes earlier operations,
// so nested pairs such as H X X H cancel completely in one pass.
func cancelInverses(ops []circuit.Operation) []circuit.Operation {
	out := make([]circuit.Operation, 0, len(ops))
	for _, op := range ops {
		if j := lastOnWires(out, op); j >= 0 && circuit.AreInverses(out[j], op) {
			out = removeAt(out, j)
			continue
		}
		out = append(out, op)
	}
	return out
}

// mergeRotations adds the angles of consecutive rotations of the same gate
// on the same wires. Rotations that sum to zero are dropped.
func mergeRotations(ops []circuit.Operation) []circuit.Operation {
	out := make([]circuit.Operation, 0, len(ops))
	for _, op := range ops {
		if !isMergeable(op) {
			out = append(out, op)
			continue
		}
		j := lastOnWires(out, op)
		if j < 0 || !isMergeable(out[j]) || out[j].Name != op.Name || !circuit.SameWires(out[j], op) {
			out = append(out, op)
			continue
		}
		merged := out[j].Copy()
		for i := range merged.Params {
			merged.Params[i] += op.Params[i]
		}
		if isZeroAngle(merged.Params) {
			out = removeAt(out, j)
			continue
		}
		out[j] = merged
	}
	return out
}

func isMergeable(op circuit.Operation) bool {
	if _, adjoint := circuit.BaseName(op.Name); adjoint {
		return false
	}
	g, ok := circuit.LookupGate(op.Name)
	return ok && g.Rotation && len(op.Params) == g.NumParams
}

func isZeroAngle(params []float64) bool {
	for _, p := range params {
		if math.Abs(p) > angleTolerance {
			return false
		}
	}
	return true
}
