package transform

import (
	"github.com/skadi/skadi/pkg/circuit"
)

// commuteControlled moves single-wire gates through the controlled gates
// they commute with: toward the end of the circuit by default, toward the
// start when left is set. A gate on a control wire commutes when it is
// diagonal in Z; a gate on a target wire commutes when it is diagonal in
// the same basis as the target action. Any other operation on the wire
// stops the move, so single-wire gates never reorder among themselves.
func commuteControlled(ops []circuit.Operation, left bool) []circuit.Operation {
	out := append([]circuit.Operation(nil), ops...)
	if left {
		for i := 0; i < len(out); i++ {
			moveLeft(out, i)
		}
		return out
	}
	for i := len(out) - 1; i >= 0; i-- {
		moveRight(out, i)
	}
	return out
}

func moveRight(ops []circuit.Operation, i int) {
	op := ops[i]
	if op.Arity() != 1 {
		return
	}
	pos := i
	for {
		k := nextOnWire(ops, pos, op.Wires[0])
		if k < 0 || !commutesThrough(op, ops[k]) {
			break
		}
		copy(ops[pos:k], ops[pos+1:k+1])
		ops[k] = op
		pos = k
	}
}

func moveLeft(ops []circuit.Operation, i int) {
	op := ops[i]
	if op.Arity() != 1 {
		return
	}
	pos := i
	for {
		k := prevOnWire(ops, pos, op.Wires[0])
		if k < 0 || !commutesThrough(op, ops[k]) {
			break
		}
		copy(ops[k+1:pos+1], ops[k:pos])
		ops[k] = op
		pos = k
	}
}

func nextOnWire(ops []circuit.Operation, from, wire int) int {
	for k := from + 1; k < len(ops); k++ {
		if ops[k].ActsOn(wire) {
			return k
		}
	}
	return -1
}

func prevOnWire(ops []circuit.Operation, from, wire int) int {
	for k := from - 1; k >= 0; k-- {
		if ops[k].ActsOn(wire) {
			return k
		}
	}
	return -1
}

// commutesThrough reports whether the single-wire op commutes with the
// controlled gate ctrl.
func commutesThrough(op, ctrl circuit.Operation) bool {
	g, ok := circuit.LookupGate(ctrl.Name)
	if !ok || !g.IsControlled() || len(ctrl.Wires) <= g.NumControls {
		return false
	}
	basis := singleWireBasis(op)
	if basis == circuit.BasisNone {
		return false
	}
	wire := op.Wires[0]
	for _, c := range ctrl.Wires[:g.NumControls] {
		if c == wire {
			return basis == circuit.BasisZ
		}
	}
	return g.Basis != circuit.BasisNone && basis == g.Basis
}

func singleWireBasis(op circuit.Operation) circuit.Basis {
	g, ok := circuit.LookupGate(op.Name)
	if !ok || g.NumWires != 1 {
		return circuit.BasisNone
	}
	return g.Basis
}
