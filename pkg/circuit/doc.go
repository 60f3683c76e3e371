// Package circuit holds the circuit program model: the gate catalogue,
// tapes of recorded operations, the Program abstraction, resource summaries
// and the Representation value that carries a program through transforms.
//
// A Program is anything that can be traced into a Tape. Programs loaded from
// source live in the interpreter package; TransformedProgram composes a
// program with a tape transform and is evaluated lazily.
//
//	b := circuit.NewBuilder(2).
//	    Op("Hadamard", []int{0}).
//	    Op("CNOT", []int{0, 1}).
//	    Measure(circuit.MeasureState)
//	rep := circuit.New(b.Program(), "", "Bell pair", nil)
//	stats, _ := rep.Statistics(false) // 2 operations, depth 2, 2 wires
package circuit
