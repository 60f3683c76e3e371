package transform

import (
	"fmt"
	"math"

	"github.com/skadi/skadi/pkg/circuit"
)

const defaultMaxExpansion = 10

// rule expands one operation into an equivalent sequence, up to global phase.
type rule func(op circuit.Operation) []circuit.Operation

func gate(name string, wires []int, params ...float64) circuit.Operation {
	return circuit.Operation{Name: name, Wires: wires, Params: params}
}

func w(wires ...int) []int { return wires }

var decompositionRules = map[string]rule{
	"Identity": func(circuit.Operation) []circuit.Operation {
		return nil
	},
	"Hadamard": func(op circuit.Operation) []circuit.Operation {
		return []circuit.Operation{
			gate("RZ", op.Wires, math.Pi/2),
			gate("RX", op.Wires, math.Pi/2),
			gate("RZ", op.Wires, math.Pi/2),
		}
	},
	"Rot": func(op circuit.Operation) []circuit.Operation {
		return []circuit.Operation{
			gate("RZ", op.Wires, op.Params[0]),
			gate("RY", op.Wires, op.Params[1]),
			gate("RZ", op.Wires, op.Params[2]),
		}
	},
	"PhaseShift": func(op circuit.Operation) []circuit.Operation {
		return []circuit.Operation{gate("RZ", op.Wires, op.Params[0])}
	},
	"CNOT": func(op circuit.Operation) []circuit.Operation {
		c, t := op.Wires[0], op.Wires[1]
		return []circuit.Operation{gate("Hadamard", w(t)), gate("CZ", w(c, t)), gate("Hadamard", w(t))}
	},
	"CZ": func(op circuit.Operation) []circuit.Operation {
		c, t := op.Wires[0], op.Wires[1]
		return []circuit.Operation{gate("Hadamard", w(t)), gate("CNOT", w(c, t)), gate("Hadamard", w(t))}
	},
	"CY": func(op circuit.Operation) []circuit.Operation {
		c, t := op.Wires[0], op.Wires[1]
		return []circuit.Operation{gate("Adjoint(S)", w(t)), gate("CNOT", w(c, t)), gate("S", w(t))}
	},
	"SWAP": func(op circuit.Operation) []circuit.Operation {
		a, b := op.Wires[0], op.Wires[1]
		return []circuit.Operation{gate("CNOT", w(a, b)), gate("CNOT", w(b, a)), gate("CNOT", w(a, b))}
	},
	"CRZ": func(op circuit.Operation) []circuit.Operation {
		c, t, phi := op.Wires[0], op.Wires[1], op.Params[0]
		return []circuit.Operation{
			gate("RZ", w(t), phi/2), gate("CNOT", w(c, t)),
			gate("RZ", w(t), -phi/2), gate("CNOT", w(c, t)),
		}
	},
	"CRY": func(op circuit.Operation) []circuit.Operation {
		c, t, phi := op.Wires[0], op.Wires[1], op.Params[0]
		return []circuit.Operation{
			gate("RY", w(t), phi/2), gate("CNOT", w(c, t)),
			gate("RY", w(t), -phi/2), gate("CNOT", w(c, t)),
		}
	},
	"CRX": func(op circuit.Operation) []circuit.Operation {
		t := op.Wires[1]
		return []circuit.Operation{gate("Hadamard", w(t)), gate("CRZ", op.Wires, op.Params[0]), gate("Hadamard", w(t))}
	},
	"ControlledPhaseShift": func(op circuit.Operation) []circuit.Operation {
		a, b, phi := op.Wires[0], op.Wires[1], op.Params[0]
		return []circuit.Operation{
			gate("PhaseShift", w(a), phi/2), gate("CNOT", w(a, b)),
			gate("PhaseShift", w(b), -phi/2), gate("CNOT", w(a, b)),
			gate("PhaseShift", w(b), phi/2),
		}
	},
	"Toffoli": func(op circuit.Operation) []circuit.Operation {
		a, b, c := op.Wires[0], op.Wires[1], op.Wires[2]
		return []circuit.Operation{
			gate("Hadamard", w(c)),
			gate("CNOT", w(b, c)), gate("Adjoint(T)", w(c)),
			gate("CNOT", w(a, c)), gate("T", w(c)),
			gate("CNOT", w(b, c)), gate("Adjoint(T)", w(c)),
			gate("CNOT", w(a, c)), gate("T", w(b)), gate("T", w(c)),
			gate("Hadamard", w(c)),
			gate("CNOT", w(a, b)), gate("T", w(a)), gate("Adjoint(T)", w(b)),
			gate("CNOT", w(a, b)),
		}
	},
	"CSWAP": func(op circuit.Operation) []circuit.Operation {
		c, a, b := op.Wires[0], op.Wires[1], op.Wires[2]
		return []circuit.Operation{
			gate("CNOT", w(b, a)), gate("Toffoli", w(c, a, b)), gate("CNOT", w(b, a)),
		}
	},
}

// Single-wire gates that are a fixed rotation, up to global phase.
var fixedRotations = []struct {
	from  string
	to    string
	angle float64
}{
	{"PauliX", "RX", math.Pi},
	{"PauliY", "RY", math.Pi},
	{"PauliZ", "RZ", math.Pi},
	{"S", "PhaseShift", math.Pi / 2},
	{"T", "PhaseShift", math.Pi / 4},
	{"SX", "RX", math.Pi / 2},
	{"Adjoint(S)", "PhaseShift", -math.Pi / 2},
	{"Adjoint(T)", "PhaseShift", -math.Pi / 4},
	{"Adjoint(SX)", "RX", -math.Pi / 2},
}

func init() {
	for _, fr := range fixedRotations {
		to, angle := fr.to, fr.angle
		decompositionRules[fr.from] = func(op circuit.Operation) []circuit.Operation {
			return []circuit.Operation{gate(to, op.Wires, angle)}
		}
	}
}

func buildDecompose(p Params) (circuit.TapeTransform, error) {
	names, err := p.GetStrings("gate_set")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("gate_set must name at least one gate")
	}
	maxExpansion, err := p.GetInt("max_expansion", defaultMaxExpansion)
	if err != nil {
		return nil, err
	}
	if maxExpansion < 1 {
		return nil, fmt.Errorf("max_expansion must be positive, got %d", maxExpansion)
	}

	target := make(map[string]bool, len(names))
	for _, name := range names {
		base, adjoint := circuit.BaseName(name)
		base = circuit.CanonicalName(base)
		if _, ok := circuit.LookupGate(base); !ok {
			return nil, fmt.Errorf("gate_set: unknown gate %s", name)
		}
		if adjoint {
			target[circuit.AdjointName(base)] = true
		} else {
			target[base] = true
		}
	}

	return opsTransform(func(ops []circuit.Operation) ([]circuit.Operation, error) {
		d := decomposer{target: target, maxDepth: maxExpansion}
		var out []circuit.Operation
		for _, op := range ops {
			out = d.expand(out, op, 0, nil)
		}
		return out, nil
	}), nil
}

type decomposer struct {
	target   map[string]bool
	maxDepth int
}

// expand appends the decomposition of op to out. Operations already in the
// target set, without a rule, past the depth limit, or already being
// expanded higher up are kept as they are.
func (d decomposer) expand(out []circuit.Operation, op circuit.Operation, depth int, expanding []string) []circuit.Operation {
	key := ruleKey(op.Name)
	if d.target[key] || depth >= d.maxDepth || contains(expanding, key) {
		return append(out, op)
	}
	r, ok := decompositionRules[key]
	if !ok {
		return append(out, op)
	}
	expanding = append(expanding, key)
	for _, sub := range r(op) {
		out = d.expand(out, sub, depth+1, expanding)
	}
	return out
}

// ruleKey normalizes a gate name, reducing adjoint wrappers to parity.
func ruleKey(name string) string {
	base, adjoint := circuit.BaseName(name)
	base = circuit.CanonicalName(base)
	if g, ok := circuit.LookupGate(base); ok && adjoint && g.SelfInverse {
		return base
	}
	if adjoint {
		return circuit.AdjointName(base)
	}
	return base
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
