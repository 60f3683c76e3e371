package transform

import (
	"math"

	"github.com/skadi/skadi/pkg/circuit"
)

// Rotation angles repeat with period 4π.
const rotationPeriod = 4 * math.Pi

// simplify drops identities and rotations by a multiple of the period,
// normalizes remaining rotation angles into (-2π, 2π] and resolves nested
// adjoints. Adjoints of self-inverse gates become the gate itself.
func simplify(ops []circuit.Operation) []circuit.Operation {
	out := make([]circuit.Operation, 0, len(ops))
	for _, op := range ops {
		base, adjoint := circuit.BaseName(op.Name)
		g, known := circuit.LookupGate(base)

		switch {
		case adjoint && known && (g.SelfInverse || g.Rotation):
			// Inverse already expresses these without a wrapper
			op = circuit.Inverse(circuit.Operation{Name: base, Wires: op.Wires, Params: op.Params})
		case adjoint:
			op.Name = circuit.AdjointName(base)
		default:
			op.Name = base
		}

		if known && g.Name == "Identity" {
			continue
		}
		if known && (g.Rotation || g.Name == "Rot" || g.Name == "CRot") {
			for i := range op.Params {
				op.Params[i] = normalizeAngle(op.Params[i])
			}
			if isZeroAngle(op.Params) {
				continue
			}
		}
		out = append(out, op)
	}
	return out
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, rotationPeriod)
	switch {
	case a > rotationPeriod/2:
		a -= rotationPeriod
	case a <= -rotationPeriod/2:
		a += rotationPeriod
	}
	if math.Abs(a) <= angleTolerance {
		return 0
	}
	return a
}

// adjoint reverses the operation order and inverts every operation.
func adjoint(ops []circuit.Operation) []circuit.Operation {
	out := make([]circuit.Operation, len(ops))
	for i, op := range ops {
		out[len(ops)-1-i] = circuit.Inverse(op)
	}
	return out
}
