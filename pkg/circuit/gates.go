package circuit

import (
	"sort"
	"strings"
)

// Basis names the Pauli axis a single-wire gate is diagonal in, if any.
type Basis string

const (
	BasisNone Basis = ""
	BasisX    Basis = "X"
	BasisY    Basis = "Y"
	BasisZ    Basis = "Z"
)

// GateSpec describes one entry of the gate catalogue.
type GateSpec struct {
	// Name is the canonical gate name recorded on tapes.
	Name string

	// Label is the short label used by the text drawer.
	Label string

	// NumWires is the operand arity. Zero means any arity of at least one.
	NumWires int

	// NumParams is the number of numeric parameters.
	NumParams int

	// NumControls is the number of leading control wires.
	NumControls int

	// SelfInverse marks gates equal to their own inverse.
	SelfInverse bool

	// Rotation marks single-angle gates that merge by adding angles.
	Rotation bool

	// Symmetric marks gates invariant under permutation of their wires.
	Symmetric bool

	// Basis is the axis a single-wire gate is diagonal in. For controlled
	// gates it is the axis of the target action.
	Basis Basis

	// Aliases are alternative names accepted by the interpreter.
	Aliases []string
}

// IsControlled returns true if the gate has control wires.
func (g GateSpec) IsControlled() bool {
	return g.NumControls > 0
}

var catalogue = []GateSpec{
	{Name: "Identity", Label: "I", NumWires: 1, SelfInverse: true, Basis: BasisZ, Aliases: []string{"I"}},
	{Name: "Hadamard", Label: "H", NumWires: 1, SelfInverse: true, Aliases: []string{"H"}},
	{Name: "PauliX", Label: "X", NumWires: 1, SelfInverse: true, Basis: BasisX, Aliases: []string{"X"}},
	{Name: "PauliY", Label: "Y", NumWires: 1, SelfInverse: true, Basis: BasisY, Aliases: []string{"Y"}},
	{Name: "PauliZ", Label: "Z", NumWires: 1, SelfInverse: true, Basis: BasisZ, Aliases: []string{"Z"}},
	{Name: "S", Label: "S", NumWires: 1, Basis: BasisZ},
	{Name: "T", Label: "T", NumWires: 1, Basis: BasisZ},
	{Name: "SX", Label: "SX", NumWires: 1, Basis: BasisX},
	{Name: "RX", Label: "RX", NumWires: 1, NumParams: 1, Rotation: true, Basis: BasisX},
	{Name: "RY", Label: "RY", NumWires: 1, NumParams: 1, Rotation: true, Basis: BasisY},
	{Name: "RZ", Label: "RZ", NumWires: 1, NumParams: 1, Rotation: true, Basis: BasisZ},
	{Name: "PhaseShift", Label: "Rϕ", NumWires: 1, NumParams: 1, Rotation: true, Basis: BasisZ, Aliases: []string{"P", "U1"}},
	{Name: "Rot", Label: "Rot", NumWires: 1, NumParams: 3},
	{Name: "CNOT", Label: "X", NumWires: 2, NumControls: 1, SelfInverse: true, Basis: BasisX, Aliases: []string{"CX"}},
	{Name: "CY", Label: "Y", NumWires: 2, NumControls: 1, SelfInverse: true, Basis: BasisY},
	{Name: "CZ", Label: "Z", NumWires: 2, NumControls: 1, SelfInverse: true, Symmetric: true, Basis: BasisZ},
	{Name: "SWAP", Label: "×", NumWires: 2, SelfInverse: true, Symmetric: true},
	{Name: "CRX", Label: "RX", NumWires: 2, NumParams: 1, NumControls: 1, Rotation: true, Basis: BasisX},
	{Name: "CRY", Label: "RY", NumWires: 2, NumParams: 1, NumControls: 1, Rotation: true, Basis: BasisY},
	{Name: "CRZ", Label: "RZ", NumWires: 2, NumParams: 1, NumControls: 1, Rotation: true, Basis: BasisZ},
	{Name: "ControlledPhaseShift", Label: "Rϕ", NumWires: 2, NumParams: 1, NumControls: 1, Rotation: true, Symmetric: true, Basis: BasisZ, Aliases: []string{"CPhase"}},
	{Name: "CRot", Label: "Rot", NumWires: 2, NumParams: 3, NumControls: 1},
	{Name: "Toffoli", Label: "X", NumWires: 3, NumControls: 2, SelfInverse: true, Basis: BasisX, Aliases: []string{"CCX"}},
	{Name: "CSWAP", Label: "×", NumWires: 3, NumControls: 1, SelfInverse: true},
	{Name: "MultiRZ", Label: "MultiRZ", NumParams: 1, Rotation: true, Symmetric: true, Basis: BasisZ},
}

var (
	gatesByName = make(map[string]GateSpec)
	aliases     = make(map[string]string)
)

func init() {
	for _, g := range catalogue {
		gatesByName[g.Name] = g
		for _, a := range g.Aliases {
			aliases[a] = g.Name
		}
	}
}

const adjointPrefix = "Adjoint("

// AdjointName returns the recorded name of the adjoint of a gate.
func AdjointName(name string) string {
	return adjointPrefix + name + ")"
}

// BaseName strips any Adjoint(...) wrappers and reports whether an odd
// number of them was present.
func BaseName(name string) (string, bool) {
	adjoint := false
	for strings.HasPrefix(name, adjointPrefix) && strings.HasSuffix(name, ")") {
		name = name[len(adjointPrefix) : len(name)-1]
		adjoint = !adjoint
	}
	return name, adjoint
}

// CanonicalName resolves aliases to the catalogue name.
func CanonicalName(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// LookupGate returns the catalogue entry for a gate name. Adjoint names
// resolve to their base gate.
func LookupGate(name string) (GateSpec, bool) {
	base, _ := BaseName(name)
	g, ok := gatesByName[CanonicalName(base)]
	return g, ok
}

// GateNames returns the sorted catalogue names.
func GateNames() []string {
	names := make([]string, 0, len(gatesByName))
	for name := range gatesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inverse returns the operation that undoes op.
func Inverse(op Operation) Operation {
	base, adjoint := BaseName(op.Name)
	g, known := LookupGate(base)
	inv := op.Copy()

	switch {
	case adjoint:
		inv.Name = base
	case known && g.SelfInverse:
	case known && g.Rotation:
		for i := range inv.Params {
			inv.Params[i] = -inv.Params[i]
		}
	case known && (g.Name == "Rot" || g.Name == "CRot") && len(inv.Params) == 3:
		inv.Params = []float64{-op.Params[2], -op.Params[1], -op.Params[0]}
	default:
		inv.Name = AdjointName(op.Name)
	}
	return inv
}

// AreInverses reports whether b undoes a when applied directly after it.
func AreInverses(a, b Operation) bool {
	if !sameWires(a, b) {
		return false
	}
	baseA, adjA := BaseName(a.Name)
	baseB, adjB := BaseName(b.Name)
	if CanonicalName(baseA) != CanonicalName(baseB) {
		return false
	}
	g, known := LookupGate(baseA)

	if adjA != adjB {
		return paramsEqual(a.Params, b.Params, 1)
	}
	if known && g.SelfInverse {
		return true
	}
	if known && g.Rotation {
		return paramsEqual(a.Params, b.Params, -1)
	}
	if known && (g.Name == "Rot" || g.Name == "CRot") && len(a.Params) == 3 && len(b.Params) == 3 {
		// Rot(ω,θ,φ) is undone by Rot(-φ,-θ,-ω).
		return paramsEqual(a.Params, []float64{-b.Params[2], -b.Params[1], -b.Params[0]}, 1)
	}
	return false
}

func sameWires(a, b Operation) bool {
	if len(a.Wires) != len(b.Wires) {
		return false
	}
	g, known := LookupGate(a.Name)
	if known && g.Symmetric {
		return sameWireSet(a.Wires, b.Wires)
	}
	if known && g.NumControls > 1 {
		n := g.NumControls
		return sameWireSet(a.Wires[:n], b.Wires[:n]) && equalInts(a.Wires[n:], b.Wires[n:])
	}
	return equalInts(a.Wires, b.Wires)
}

// SameWires reports whether two operations of the same gate act on
// equivalent operands, honoring symmetric gates.
func SameWires(a, b Operation) bool {
	return sameWires(a, b)
}

func sameWireSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]int, len(a))
	for _, w := range a {
		seen[w]++
	}
	for _, w := range b {
		seen[w]--
		if seen[w] < 0 {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const paramTolerance = 1e-8

func paramsEqual(a, b []float64, sign float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := a[i] - sign*b[i]
		if d > paramTolerance || d < -paramTolerance {
			return false
		}
	}
	return true
}
